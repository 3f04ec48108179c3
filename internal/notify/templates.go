package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const footer = `EDUZEN - Plateforme de gestion de formation
Si vous n'êtes pas le destinataire de ce message, veuillez l'ignorer.`

var (
	invitationText = texttemplate.Must(texttemplate.New("invitation").Parse(`Bonjour {{.Name}},

Vous êtes invité(e) à signer le document suivant :

Document : {{.Title}}
{{- if .Position}}
Signataire : {{.Position}}{{end}}

Pour consulter et signer ce document, veuillez cliquer sur ce lien :
{{.SignURL}}

Ce lien est personnel, ne le transférez pas.

---
` + footer + `
`))

	invitationHTML = htmltemplate.Must(htmltemplate.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="font-size: 20px;">Demande de signature</h1>
<p>Bonjour <strong>{{.Name}}</strong>,</p>
<p>Vous êtes invité(e) à signer le document suivant :</p>
<p><strong>{{.Title}}</strong>{{if .Position}} (signataire {{.Position}}){{end}}</p>
<p><a href="{{.SignURL}}" style="display: inline-block; background: #2563eb; color: white; padding: 12px 28px; text-decoration: none; border-radius: 6px;">Signer le document</a></p>
<p style="font-size: 13px;">Ce lien est personnel, ne le transférez pas.</p>
<p style="color: #6b7280; font-size: 13px;">EDUZEN - Plateforme de gestion de formation<br>Si vous n'êtes pas le destinataire de ce message, veuillez l'ignorer.</p>
</body>
</html>
`))

	completionText = texttemplate.Must(texttemplate.New("completion").Parse(`Bonjour,

Le document « {{.Title}} » a été signé par toutes les parties.
Vous trouverez en pièce jointe le document signé{{if .HasTrail}} et son dossier de preuve{{end}}.

---
` + footer + `
`))

	completionHTML = htmltemplate.Must(htmltemplate.New("completion").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="font-size: 20px;">Document signé</h1>
<p>Bonjour,</p>
<p>Le document <strong>{{.Title}}</strong> a été signé par toutes les parties.</p>
<p>Vous trouverez en pièce jointe le document signé{{if .HasTrail}} et son dossier de preuve{{end}}.</p>
<p style="color: #6b7280; font-size: 13px;">EDUZEN - Plateforme de gestion de formation<br>Si vous n'êtes pas le destinataire de ce message, veuillez l'ignorer.</p>
</body>
</html>
`))
)

type invitationData struct {
	Name     string
	Title    string
	SignURL  string
	Position string
}

type completionData struct {
	Title    string
	HasTrail bool
}

func render(text *texttemplate.Template, html *htmltemplate.Template, data any) (string, string, error) {
	var t, h bytes.Buffer
	if err := text.Execute(&t, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s text: %w", text.Name(), err)
	}
	if err := html.Execute(&h, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s html: %w", html.Name(), err)
	}
	return t.String(), h.String(), nil
}

func invitationSubject(title string) string {
	return "Demande de signature : " + title
}

func completionSubject(title string) string {
	return "Document signé : " + title
}
