package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"courseforge/internal/services"
)

const defaultCloudinaryTimeout = 120 * time.Second

// CloudinaryClient performs signed video uploads.
type CloudinaryClient struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewCloudinaryClient constructs an upload client. Enabled reports false when
// the credential triple is absent.
func NewCloudinaryClient(cloudName, apiKey, apiSecret, baseURL string, timeoutSeconds int, httpClient *http.Client) *CloudinaryClient {
	timeout := defaultCloudinaryTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.cloudinary.com/v1_1"
	}
	return &CloudinaryClient{
		cloudName:  strings.TrimSpace(cloudName),
		apiKey:     strings.TrimSpace(apiKey),
		apiSecret:  strings.TrimSpace(apiSecret),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Enabled reports whether upload credentials are configured.
func (c *CloudinaryClient) Enabled() bool {
	return c != nil && c.cloudName != "" && c.apiKey != "" && c.apiSecret != ""
}

// Upload pushes a local video file and returns its hosted URL.
func (c *CloudinaryClient) Upload(ctx context.Context, localPath, publicID string) (string, error) {
	if !c.Enabled() {
		return "", services.Wrap(services.ErrConfiguration, StageName, "cloudinary", "credentials not configured", nil)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "open file", err)
	}
	defer file.Close()

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := c.sign(map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	})

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer writer.Close()
		_ = writer.WriteField("api_key", c.apiKey)
		_ = writer.WriteField("timestamp", timestamp)
		_ = writer.WriteField("public_id", publicID)
		_ = writer.WriteField("signature", signature)
		part, err := writer.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
		}
	}()

	endpoint := c.baseURL + "/" + c.cloudName + "/video/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "upload failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "http "+strconv.Itoa(resp.StatusCode), nil)
	}

	var parsed struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "decode response", err)
	}
	hosted := parsed.SecureURL
	if hosted == "" {
		hosted = parsed.URL
	}
	if hosted == "" {
		return "", services.Wrap(services.ErrExternalTool, StageName, "cloudinary", "response has no url", nil)
	}
	return hosted, nil
}

// sign produces the SHA1 signature Cloudinary expects: sorted params joined
// with &, then the API secret appended.
func (c *CloudinaryClient) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}
