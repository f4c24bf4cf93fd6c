package optimizer

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	apperrors "github.com/leeforge/instafit/errors"
	"github.com/leeforge/instafit/media/processor"
)

// Message keys. The English text doubles as the key.
const (
	msgInvalidKind   = "Please select a valid image file"
	msgTooLarge      = "The image is too large. The maximum size is %dMB"
	msgProcessFailed = "Error processing the image: %s"
	msgRerunFailed   = "Error reprocessing the image: %s"
	msgDownload      = "Error downloading the image"
	msgDecode        = "Error loading the image"
	msgRender        = "Error creating the image"
	msgUnexpected    = "Unexpected error"

	msgSquare   = "Square post"
	msgVertical = "Vertical post"
	msgStory    = "Story"
)

// targetNames maps target keys to their display-name message keys.
var targetNames = map[string]string{
	processor.Square.Key:   msgSquare,
	processor.Vertical.Key: msgVertical,
	processor.Story.Key:    msgStory,
}

var supportedLocales = []language.Tag{language.English, language.Spanish}

var spanish = map[string]string{
	msgInvalidKind:   "Por favor selecciona un archivo de imagen válido",
	msgTooLarge:      "La imagen es demasiado grande. El tamaño máximo es %dMB",
	msgProcessFailed: "Error al procesar la imagen: %s",
	msgRerunFailed:   "Error al reprocesar la imagen: %s",
	msgDownload:      "Error al descargar la imagen",
	msgDecode:        "Error al cargar la imagen",
	msgRender:        "Error al crear la imagen",
	msgUnexpected:    "Error inesperado",
	msgSquare:        "Post Cuadrado",
	msgVertical:      "Post Vertical",
	msgStory:         "Story",
}

// messages turns failures into text for the configured locale.
type messages struct {
	printer *message.Printer
}

func newMessages(locale string) (*messages, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range spanish {
		if err := b.SetString(language.English, key, key); err != nil {
			return nil, err
		}
		if err := b.SetString(language.Spanish, key, text); err != nil {
			return nil, err
		}
	}

	tag, _ := language.MatchStrings(language.NewMatcher(supportedLocales), locale)
	base, _ := tag.Base()
	return &messages{
		printer: message.NewPrinter(language.Make(base.String()), message.Catalog(b)),
	}, nil
}

func (m *messages) invalidKind() string {
	return m.printer.Sprintf(msgInvalidKind)
}

func (m *messages) tooLarge(limit int64) string {
	return m.printer.Sprintf(msgTooLarge, limit/(1024*1024))
}

// targetName returns the localized display name of t.
func (m *messages) targetName(t processor.Target) string {
	key, ok := targetNames[t.Key]
	if !ok {
		return t.Name
	}
	return m.printer.Sprintf(key)
}

func (m *messages) download() string {
	return m.printer.Sprintf(msgDownload)
}

// runFailed describes a failed run. The first run of an upload and later
// re-runs use different wording.
func (m *messages) runFailed(err error, rerun bool) string {
	var cause string
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeDecodeFailure:
		cause = m.printer.Sprintf(msgDecode)
	case apperrors.ErrorTypeRenderFailure:
		cause = m.printer.Sprintf(msgRender)
	default:
		cause = m.printer.Sprintf(msgUnexpected)
	}

	if rerun {
		return m.printer.Sprintf(msgRerunFailed, cause)
	}
	return m.printer.Sprintf(msgProcessFailed, cause)
}
