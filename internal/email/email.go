package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/beatline/beatline/internal/models"
)

type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSender(host, port, username, password, from string) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

const notificationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .header { background-color: #1a1a2e; color: white; padding: 10px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; }
        .title { font-weight: bold; }
        .footer { margin-top: 20px; font-size: 0.8em; color: #777; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Beatline</h1>
        </div>
        <div class="content">
            <p>Hi {{.Name}},</p>
            <p>You were offline, so we kept this for you:</p>
            <p class="title">{{.Title}}</p>
            <p>{{.Message}}</p>
            <p>Open Beatline to see the full details.</p>
        </div>
        <div class="footer">
            <p>&copy; 2025 Beatline</p>
        </div>
    </div>
</body>
</html>
`

// SendNotificationEmail delivers an offline digest for a notification that
// could not be pushed live. With no host configured it prints a mock email
// instead, which keeps development setups working without SMTP.
func (s *Sender) SendNotificationEmail(to, name string, n *models.Notification) error {
	t, err := template.New("notification").Parse(notificationTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	data := map[string]string{"Name": name, "Title": n.Title, "Message": n.Message}
	if err := t.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	subject := fmt.Sprintf("New %s notification on Beatline", n.Type)

	headers := make(map[string]string)
	headers["From"] = s.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body.String()

	if s.Host == "" {
		fmt.Println("==================================================")
		fmt.Printf("MOCK EMAIL TO: %s\n", to)
		fmt.Printf("SUBJECT: %s\n", subject)
		fmt.Println(body.String())
		fmt.Println("==================================================")
		return nil
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	return smtp.SendMail(addr, auth, s.From, []string{to}, []byte(message))
}
