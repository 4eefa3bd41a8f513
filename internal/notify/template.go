package notify

import (
	"bytes"
	"html/template"
)

// Subject of the credentials email.
const Subject = "Your Loan App Account Credentials"

type credentialsView struct {
	FirstName string
	Email     string
	UserID    string
	Password  string
	LoginURL  string
	Year      int
}

var credentialsTmpl = template.Must(template.New("credentials").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 8px;">
  <div style="text-align: center; margin-bottom: 20px;">
    <h1 style="color: #2563eb;">Welcome to Loan App, {{.FirstName}}!</h1>
    <p style="color: #4b5563;">Your account has been successfully created</p>
  </div>
  <div style="background-color: #f9fafb; padding: 16px; border-radius: 8px; margin-bottom: 20px;">
    <h2 style="color: #111827; margin-top: 0;">Your Login Credentials</h2>
    <p><strong>User ID:</strong> {{.UserID}}</p>
    <p><strong>Email:</strong> {{.Email}}</p>
    <p><strong>Temporary Password:</strong> {{.Password}}</p>
  </div>
  <div style="margin-bottom: 20px;">
    <p style="color: #4b5563;">For your security, please:</p>
    <ul style="color: #4b5563; padding-left: 20px;">
      <li>Change your password after first login</li>
      <li>Never share your credentials with anyone</li>
      <li>Contact support if you didn't request this account</li>
    </ul>
  </div>
  <div style="text-align: center;">
    <a href="{{.LoginURL}}" style="display: inline-block; background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 10px;">Login to Your Account</a>
  </div>
  <div style="margin-top: 30px; font-size: 12px; color: #9ca3af; text-align: center;">
    <p>&copy; {{.Year}} Loan App. All rights reserved.</p>
    <p>This is an automated message - please do not reply directly to this email.</p>
  </div>
</div>
`))

func renderCredentials(v credentialsView) (string, error) {
	var buf bytes.Buffer
	if err := credentialsTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
