package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestPresign_Success(t *testing.T) {
	ta := setupApp(t)

	body := `{"fileName": "my clip (final).mp4", "fileType": "video/mp4", "fileSize": 1048576}`
	resp := ta.doAuthRequest(t, testUserID, http.MethodPost, "/api/uploads/presign", body)
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	filePath, _ := result["filePath"].(string)
	if !strings.HasPrefix(filePath, "uploads/"+testUserID+"/") || !strings.HasSuffix(filePath, "_my_clip__final_.mp4") {
		t.Errorf("unexpected filePath %q", filePath)
	}
	uploadURL, _ := result["uploadUrl"].(string)
	if !strings.Contains(uploadURL, "/video-uploads/"+filePath) || !strings.Contains(uploadURL, "X-Amz-Signature=") {
		t.Errorf("unexpected uploadUrl %q", uploadURL)
	}
	if result["uploadId"] == nil || result["uploadId"] == "" {
		t.Error("expected uploadId in response")
	}

	recs := ta.uploads.All()
	if len(recs) != 1 || recs[0].FilePath != filePath || recs[0].UserID != testUserID {
		t.Errorf("expected one upload record for %s, got %+v", filePath, recs)
	}
}

func TestPresign_Rejects(t *testing.T) {
	ta := setupApp(t)

	cases := map[string]string{
		"bad type":  `{"fileName": "a.exe", "fileType": "application/x-msdownload", "fileSize": 10}`,
		"too large": `{"fileName": "a.mp4", "fileType": "video/mp4", "fileSize": 104857601}`,
		"no name":   `{"fileType": "video/mp4", "fileSize": 10}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := ta.doAuthRequest(t, testUserID, http.MethodPost, "/api/uploads/presign", body)
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
	if n := len(ta.uploads.All()); n != 0 {
		t.Errorf("expected no upload records, got %d", n)
	}
}

func TestPresign_StorageNotConfigured(t *testing.T) {
	ta := setupApp(t, withoutStorage())

	body := `{"fileName": "a.mp4", "fileType": "video/mp4", "fileSize": 10}`
	resp := ta.doAuthRequest(t, testUserID, http.MethodPost, "/api/uploads/presign", body)
	assertStatus(t, resp, http.StatusServiceUnavailable)
}

func TestPresign_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/uploads/presign", `{"fileName": "a.mp4", "fileType": "video/mp4", "fileSize": 10}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}
