package middleware

import (
	"bufio"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"fashion-store/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logging logs every request once it has been served
func Logging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)
			next.ServeHTTP(sw, r)

			entry := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"url":        r.URL.String(),
				"remoteAddr": r.RemoteAddr,
				"userAgent":  r.UserAgent(),
				"status":     sw.status,
				"duration":   time.Since(start).String(),
			})
			switch {
			case sw.status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case sw.status >= http.StatusBadRequest:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
		})
	}
}

// Recovery turns a panic into a 500 and logs the stack
func Recovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrap(w)
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"err":    err,
						"method": r.Method,
						"path":   r.URL.Path,
						"stack":  string(debug.Stack()),
					}).Error("panic recovered")
					if !sw.wroteHeader {
						utils.WriteError(sw, http.StatusInternalServerError, "internal server error")
					}
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

// statusWriter captures the response status. It passes Hijack through so
// the websocket upgrade keeps working behind it.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
