package server

import (
	"encoding/base64"
	"net"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

type qrcodeResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	QRCode  string `json:"qrcode"`
}

// handleQRCode returns a scannable PNG of the server's reachable URL, so
// a phone can join the collector without typing an IP.
func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request) {
	url := s.publicURL()

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		logFor(r.Context()).Error("encode qr", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "could not build qr code")
		return
	}

	writeJSON(w, http.StatusOK, qrcodeResponse{
		Success: true,
		URL:     url,
		QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// publicURL is the address phones should hit: the configured base URL,
// or the detected LAN address plus the listen port.
func (s *Server) publicURL() string {
	if s.config.BaseURL != "" {
		return strings.TrimRight(s.config.BaseURL, "/")
	}

	host := outboundIP()
	if host == "" {
		host = "localhost"
	}

	_, port, err := net.SplitHostPort(s.config.ListenAddr)
	if err != nil || port == "" {
		port = "8080"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// outboundIP finds the interface address the default route uses. The UDP
// dial never sends a packet; it only resolves the local endpoint.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ""
	}
	return host
}
