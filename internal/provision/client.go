// Package provision talks to the device-management platform's REST API to
// register devices and bind their X.509 credentials before a TLS batch.
// Certificate generation itself is external tooling; this client only
// reads an existing PEM file.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry

	token string
}

func NewClient(host string, port int, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d/api", host, port),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Login authenticates and stores the bearer token used by later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/login", body, &resp); err != nil {
		return errors.Wrap(err, "login")
	}
	if resp.Token == "" {
		return errors.New("login succeeded but no token returned")
	}
	c.token = resp.Token
	c.log.Info("logged in to device platform")
	return nil
}

// CreateDeviceWithCertificate registers a device and attaches the PEM
// certificate at certPath as its X.509 credentials. Returns the platform's
// device id.
func (c *Client) CreateDeviceWithCertificate(ctx context.Context, name, certPath string) (string, error) {
	if c.token == "" {
		return "", errors.New("not logged in")
	}

	pem, err := os.ReadFile(certPath)
	if err != nil {
		return "", errors.Wrap(err, "reading certificate")
	}

	var created struct {
		ID struct {
			ID string `json:"id"`
		} `json:"id"`
	}
	device := map[string]string{"name": name, "type": "default"}
	if err := c.post(ctx, "/device", device, &created); err != nil {
		return "", errors.Wrap(err, "creating device")
	}
	deviceID := created.ID.ID

	creds := map[string]any{
		"deviceId": map[string]string{
			"entityType": "DEVICE",
			"id":         deviceID,
		},
		"credentialsType":  "X509_CERTIFICATE",
		"credentialsValue": strings.TrimSpace(string(pem)),
	}
	if err := c.post(ctx, "/device/credentials", creds, nil); err != nil {
		return "", errors.Wrap(err, "binding certificate credentials")
	}

	c.log.WithFields(logrus.Fields{
		"device": name,
		"id":     deviceID,
	}).Info("device provisioned with X.509 credentials")
	return deviceID, nil
}

// post sends a JSON request with retries on transient failures. 4xx
// responses fail immediately: retrying a rejected request cannot help.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			if c.token != "" {
				req.Header.Set("X-Authorization", "Bearer "+c.token)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				apiErr := errors.Errorf("%s %s: %s", path, resp.Status, apiMessage(data))
				if resp.StatusCode >= 500 {
					return apiErr
				}
				return retry.Unrecoverable(apiErr)
			}
			if out != nil {
				return json.Unmarshal(data, out)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithError(err).WithField("attempt", n+1).Warn("retrying platform request")
		}),
	)
}

// apiMessage pulls the platform's error message out of a response body,
// falling back to the raw text.
func apiMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(data))
}
