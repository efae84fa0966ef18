package middleware

import (
	"net/http"
	"net/url"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AccessLog is chi's request logger with credentials removed from the
// logged URI.
func AccessLog(logger chimiddleware.LoggerInterface) func(http.Handler) http.Handler {
	return chimiddleware.RequestLogger(&redactingFormatter{
		next: &chimiddleware.DefaultLogFormatter{Logger: logger, NoColor: true},
	})
}

type redactingFormatter struct {
	next chimiddleware.LogFormatter
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	if !r.URL.Query().Has(accessTokenParam) {
		return f.next.NewLogEntry(r)
	}
	logged := *r
	logged.RequestURI = redactURI(r.URL)
	return f.next.NewLogEntry(&logged)
}

func redactURI(u *url.URL) string {
	q := u.Query()
	q.Set(accessTokenParam, "REDACTED")
	var b strings.Builder
	b.WriteString(u.EscapedPath())
	b.WriteByte('?')
	b.WriteString(q.Encode())
	return b.String()
}
