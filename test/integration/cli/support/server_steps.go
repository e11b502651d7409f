package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

type streamMessage = server.WebSocketMessage

// RegisterServerSteps registers HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the split server is running$`, testCtx.theSplitServerIsRunning)
	sc.Step(`^the split server is running with a limit of (\d+) requests? per minute$`, testCtx.theSplitServerIsRunningWithRateLimit)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)"$`, testCtx.iUploadWith)
	sc.Step(`^I stream "([^"]*)" to "([^"]*)"$`, testCtx.iStream)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should report (\d+) regions$`, testCtx.theResponseShouldReportRegions)
	sc.Step(`^region (\d+) should read "([^"]*)"$`, testCtx.regionShouldRead)
	sc.Step(`^I should receive (\d+) region messages followed by a summary$`, testCtx.iShouldReceiveRegionMessages)
}

func (testCtx *TestContext) theSplitServerIsRunning() error {
	return testCtx.startTestHTTPServer(server.Config{})
}

func (testCtx *TestContext) theSplitServerIsRunningWithRateLimit(rpm int) error {
	return testCtx.startTestHTTPServer(server.Config{
		RateLimit: server.RateLimitConfig{Enabled: true, RequestsPerMinute: rpm, Burst: rpm},
	})
}

func (testCtx *TestContext) iRequest(path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	resp, err := http.Get(base + path) //nolint:noctx // test request against local server
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) iUpload(name, path string) error {
	return testCtx.iUploadWith(name, path, "")
}

// iUploadWith posts name as multipart upload; fields is a query string of
// extra form values.
func (testCtx *TestContext) iUploadWith(name, path, fields string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	return testCtx.postMultipart(path, filepath.Base(name), data, fields)
}

func (testCtx *TestContext) postMultipart(path, filename string, data []byte, fields string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	values, err := url.ParseQuery(fields)
	if err != nil {
		return fmt.Errorf("invalid form fields %q: %w", fields, err)
	}

	field := "image"
	if strings.HasSuffix(path, "/pdf") {
		field = "pdf"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for k, vs := range values {
		for _, v := range vs {
			if err := w.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(base+path, w.FormDataContentType(), &body) //nolint:noctx // test request against local server
	if err != nil {
		return err
	}
	return testCtx.storeResponse(resp)
}

func (testCtx *TestContext) storeResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iStream sends the image as one binary WebSocket message and collects the
// replies up to the summary or an error.
func (testCtx *TestContext) iStream(name, path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+path, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}

	testCtx.LastStreamMessages = nil
	for {
		if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
			return err
		}
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		testCtx.LastStreamMessages = append(testCtx.LastStreamMessages, msg)
		if msg.Type == "done" || msg.Type == "error" {
			return nil
		}
	}
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("expected header %s to be %q, got %q", name, value, got)
	}
	return nil
}

// responseRegions collects the regions of a /split or /split/pdf response.
func (testCtx *TestContext) responseRegions() ([]pipeline.RegionResult, error) {
	var resp struct {
		Result struct {
			Regions []pipeline.RegionResult `json:"regions"`
			Pages   []struct {
				Images []pipeline.SplitResult `json:"images"`
			} `json:"pages"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	regions := resp.Result.Regions
	for _, p := range resp.Result.Pages {
		for _, img := range p.Images {
			regions = append(regions, img.Regions...)
		}
	}
	return regions, nil
}

func (testCtx *TestContext) theResponseShouldReportRegions(count int) error {
	regions, err := testCtx.responseRegions()
	if err != nil {
		return err
	}
	if len(regions) != count {
		return fmt.Errorf("expected %d regions, got %d", count, len(regions))
	}
	return nil
}

func (testCtx *TestContext) regionShouldRead(index int, text string) error {
	regions, err := testCtx.responseRegions()
	if err != nil {
		return err
	}
	for _, r := range regions {
		if r.Index == index {
			if r.Text != text {
				return fmt.Errorf("region %d reads %q, expected %q", index, r.Text, text)
			}
			return nil
		}
	}
	return fmt.Errorf("region %d not found", index)
}

func (testCtx *TestContext) iShouldReceiveRegionMessages(count int) error {
	msgs := testCtx.LastStreamMessages
	if len(msgs) != count+1 {
		return fmt.Errorf("expected %d messages, got %d: %+v", count+1, len(msgs), msgs)
	}
	for i, m := range msgs[:count] {
		if m.Type != "region" || m.Region == nil || m.Region.Index != i+1 {
			return fmt.Errorf("message %d is not region %d: %+v", i, i+1, m)
		}
	}
	last := msgs[count]
	if last.Type != "done" || last.Summary == nil || last.Summary.Regions != count {
		return fmt.Errorf("expected a summary of %d regions, got %+v", count, last)
	}
	return nil
}
