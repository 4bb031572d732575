package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/netx"
	"github.com/google/uuid"
)

// Client is the partner interop server.
type Client interface {
	// Download returns the batch following batchTag on date, or nil when
	// the server has nothing more (204). An empty batchTag asks for the
	// first batch of the day.
	Download(ctx context.Context, date time.Time, batchTag string) (*DownloadResponse, error)
	Upload(ctx context.Context, exposures []ExposureUpload) (*UploadResponse, error)
}

// PayloadSigner turns an upload payload into a compact JWS.
type PayloadSigner interface {
	Sign(ctx context.Context, payload []byte) (string, error)
}

// HTTPClient talks to the interop server over HTTPS with a bearer token.
type HTTPClient struct {
	baseURL     string
	authToken   string
	signer      PayloadSigner
	http        *http.Client
	newBatchTag func() string
}

func NewHTTPClient(baseURL, authToken string, signer PayloadSigner, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		authToken:   authToken,
		signer:      signer,
		http:        httpClient,
		newBatchTag: uuid.NewString,
	}
}

func (c *HTTPClient) Download(ctx context.Context, date time.Time, batchTag string) (*DownloadResponse, error) {
	u := c.baseURL + "/diagnosiskeys/download/" + date.UTC().Format(BatchDateLayout)
	if batchTag != "" {
		u += "?" + url.Values{"batchTag": {batchTag}}.Encode()
	}

	resp, err := netx.DoJSON(ctx, c.http, http.MethodGet, u, c.authToken, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out DownloadResponse
		if err := resp.Decode(&out); err != nil {
			return nil, fmt.Errorf("download %s: %w", u, err)
		}
		return &out, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("download %s: %w", u, resp.UnexpectedStatus())
	}
}

func (c *HTTPClient) Upload(ctx context.Context, exposures []ExposureUpload) (*UploadResponse, error) {
	payload, err := json.Marshal(exposures)
	if err != nil {
		return nil, err
	}
	jws, err := c.signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sign upload: %w", err)
	}

	u := c.baseURL + "/diagnosiskeys/upload"
	resp, err := netx.DoJSON(ctx, c.http, http.MethodPost, u, c.authToken, uploadRequest{
		BatchTag: c.newBatchTag(),
		Payload:  jws,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload: %w", resp.UnexpectedStatus())
	}

	var out UploadResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &out, nil
}
