package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newswire/domain"
)

type Client struct {
	addr  string
	token string
}

func NewClient(addr, token string) *Client { return &Client{addr: addr, token: token} }

func (c *Client) SetInterval(d time.Duration) (time.Duration, error) {
	body, _ := json.Marshal(map[string]interface{}{"duration": d.String()})
	resp, err := http.Post("http://"+c.addr+"/set-interval", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("server error: %s", resp.Status)
	}
	var r struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, err
	}
	return time.ParseDuration(r.Old)
}

func (c *Client) SetBatchSize(n int) (int, error) {
	body, _ := json.Marshal(map[string]interface{}{"batch_size": n})
	resp, err := http.Post("http://"+c.addr+"/set-batch-size", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("server error: %s", resp.Status)
	}
	var r struct {
		Old int `json:"old"`
		New int `json:"new"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, err
	}
	return r.Old, nil
}

// TriggerIngest asks the running watcher to ingest one batch now.
func (c *Client) TriggerIngest(batchSize, batchOffset int) (domain.IngestResult, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"batch_size":   batchSize,
		"batch_offset": batchOffset,
	})
	req, err := http.NewRequest(http.MethodPost, "http://"+c.addr+"/ingest", bytes.NewReader(body))
	if err != nil {
		return domain.IngestResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.IngestResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.IngestResult{}, fmt.Errorf("server error: %s", resp.Status)
	}
	var result domain.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.IngestResult{}, err
	}
	return result, nil
}
