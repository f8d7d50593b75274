package notify

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
)

const (
	defaultSubjectTemplate = `Licitação atualizada: {{.ControlNumber}}`
	defaultBodyTemplate    = `Olá {{.Recipient.Name}},

A licitação que você acompanha foi atualizada em {{.Event.GlobalUpdateDate.Format "02/01/2006 15:04"}}.

Número de controle: {{.Event.ControlNumber}}
Modalidade: {{.Event.ModalityName}}
Objeto: {{.Event.PurchaseObject}}
`
)

type templateManifest struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// templateData is what both templates render against.
type templateData struct {
	Event     event.TenderChanged
	Recipient event.Recipient

	// ControlNumber is duplicated at the top level so short subject
	// templates stay readable.
	ControlNumber string
}

// Templates renders the subject and body of one change notification.
type Templates struct {
	subject *template.Template
	body    *template.Template
}

// LoadTemplates reads a YAML manifest with `subject` and `body` template
// strings. An empty path falls back to the built-in Portuguese templates.
func LoadTemplates(path string) (*Templates, error) {
	manifest := templateManifest{
		Subject: defaultSubjectTemplate,
		Body:    defaultBodyTemplate,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template manifest: %w", err)
		}
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("parse template manifest: %w", err)
		}
		if manifest.Subject == "" || manifest.Body == "" {
			return nil, fmt.Errorf("template manifest %s must define subject and body", path)
		}
	}

	subject, err := template.New("subject").Parse(manifest.Subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(manifest.Body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Templates{subject: subject, body: body}, nil
}

func (t *Templates) Render(ev event.TenderChanged, recipient event.Recipient) (subject, body string, err error) {
	data := templateData{
		Event:         ev,
		Recipient:     recipient,
		ControlNumber: ev.ControlNumber,
	}

	var subjectBuf, bodyBuf bytes.Buffer
	if err := t.subject.Execute(&subjectBuf, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := t.body.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subjectBuf.String(), bodyBuf.String(), nil
}
