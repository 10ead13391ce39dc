package handlers

import (
	"html/template"
	"net/http"

	"github.com/md-rashed-zaman/reservd/internal/booking"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <title>Booking confirmed</title>
</head>
<body style="font-family:sans-serif;text-align:center;margin-top:50px;">
  <h2>Your appointment is booked!</h2>
  <p>{{.Name}}, see you on <b>{{.Date}}</b> at <b>{{.Time}}</b> for <b>{{.Service}}</b>.</p>
  <a href="/" style="margin-top:20px;display:block;">Back</a>
</body>
</html>`))

const notConfirmedPage = `<!doctype html>
<html>
<head><meta charset="utf-8"/><title>Payment not confirmed</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:50px;">
  <h3>Payment not confirmed.</h3>
  <a href="/">Back</a>
</body>
</html>`

const failurePage = `<!doctype html>
<html>
<head><meta charset="utf-8"/><title>Something went wrong</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:50px;">
  <h3>Something went wrong. Please try again.</h3>
  <a href="/">Back</a>
</body>
</html>`

func renderConfirmationPage(w http.ResponseWriter, req booking.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = confirmationTmpl.Execute(w, req)
}

func renderNotConfirmedPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(notConfirmedPage))
}

func renderFailurePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(failurePage))
}
