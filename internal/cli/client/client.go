package client

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"shipyard/internal/common"
)

var (
	token      = os.Getenv("SHIPYARD_TOKEN")
	serverURL  = "http://localhost:8080"
	caCertPath = os.Getenv("CA_CERT_PATH")
)

func init() {
	if envServer := os.Getenv("SHIPYARD_SERVER"); envServer != "" {
		serverURL = strings.TrimRight(envServer, "/")
	}
}

func SaveToken(t string) {
	token = t
}

func SetServerURL(url string) {
	serverURL = strings.TrimRight(url, "/")
}

// APIError is a non-zero envelope code returned by the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (code %d, http %d)", e.Message, e.Code, e.Status)
}

func SendRequest(method, path string, body io.Reader) (*http.Response, error) {
	req, err := CreateRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return DoRequest(req)
}

func CreateRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", common.BearerHeader(token))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func DoRequest(req *http.Request) (*http.Response, error) {
	client := &http.Client{
		Transport: createTransport(),
		Timeout:   30 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// 服务端快到期时会在响应头里下发新token
	if refreshed, err := common.BearerToken(resp.Header.Get("Authorization")); err == nil {
		SaveToken(refreshed)
	}
	return resp, nil
}

// Call sends in as JSON and decodes the envelope's data into out.
func Call(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := SendRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return DecodeResponse(resp, out)
}

func DecodeResponse(resp *http.Response, out any) error {
	raw, err := ReadResponseBody(resp)
	if err != nil {
		return err
	}
	var envelope common.RawResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (http %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if envelope.Code != common.SUCCESS {
		return &APIError{Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func createTransport() *http.Transport {
	tlsConfig := &tls.Config{}
	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fail to read ca cert: %v\n", err)
		} else {
			caCertPool := x509.NewCertPool()
			if caCertPool.AppendCertsFromPEM(caCert) {
				tlsConfig.RootCAs = caCertPool
			} else {
				fmt.Fprintln(os.Stderr, "fail to parse ca cert, use system default cert pool")
			}
		}
	}
	return &http.Transport{
		TLSClientConfig: tlsConfig,
	}
}

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if resp.Body == nil {
		return nil, fmt.Errorf("response body is nil")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return body, nil
}
