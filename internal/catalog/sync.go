package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/parse"
)

// StudioUpserter persists synced studios.
type StudioUpserter interface {
	UpsertStudios(ctx context.Context, studios []model.Studio) error
}

// Service keeps the local studio table in step with the upstream catalog.
type Service struct {
	cfg    config.CatalogConfig
	store  StudioUpserter
	client *http.Client
	log    *slog.Logger
	// onSync runs after studios were written, e.g. to drop cached listings.
	onSync func()
}

// NewService creates and initializes a new catalog sync service.
func NewService(cfg config.CatalogConfig, s StudioUpserter, log *slog.Logger, onSync func()) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid catalog proxy URL, not using a proxy", "proxy", cfg.HTTPProxy, "err", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		log:    log,
		onSync: onSync,
	}
}

// Run syncs once and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("catalog sync is disabled, not starting")
		return
	}
	s.log.Info("starting catalog sync", "interval", s.cfg.Interval)

	s.syncAndLog(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("catalog sync shutting down")
			return
		case <-timer.C:
			s.syncAndLog(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) syncAndLog(ctx context.Context) {
	n, err := s.SyncOnce(ctx)
	if err != nil {
		s.log.Error("catalog sync failed", "err", err)
		return
	}
	s.log.Info("catalog sync finished", "studios", n)
}

// SyncOnce pages through the upstream catalog and upserts every usable studio.
// It returns the number of studios written.
func (s *Service) SyncOnce(ctx context.Context) (int, error) {
	var items []ApiItem
	total := 1
	pageSize := s.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page, pageSize)
		if err != nil {
			fetchErr = fmt.Errorf("fetch page %d: %w", page, err)
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		items = append(items, resp.Data.Items...)
		s.log.Debug("fetched catalog page", "page", page, "items", len(items), "total", total)
	}

	// Nothing fetched means nothing to write; keep the studios we have.
	if fetchErr != nil && len(items) == 0 {
		return 0, fetchErr
	}

	studios := s.toStudios(items)

	if err := s.store.UpsertStudios(ctx, studios); err != nil {
		return 0, fmt.Errorf("upsert studios: %w", err)
	}
	if len(studios) > 0 && s.onSync != nil {
		s.onSync()
	}
	if fetchErr != nil {
		s.log.Warn("catalog sync was partial", "err", fetchErr, "studios", len(studios))
	}
	return len(studios), nil
}

// toStudios converts items, keeping studio codes unique within the batch.
// Upstream codes are claimed first. A derived code that is already taken gets
// the studio id appended ("NOI" becomes "NOI11"); a duplicate upstream code
// skips the later item.
func (s *Service) toStudios(items []ApiItem) []model.Studio {
	studios := make([]model.Studio, 0, len(items))
	derived := make([]bool, 0, len(items))
	for _, item := range items {
		studio, err := toStudio(item)
		if err != nil {
			s.log.Warn("skipping catalog item", "id", item.ID, "err", err)
			continue
		}
		studios = append(studios, studio)
		derived = append(derived, strings.TrimSpace(item.Code) == "")
	}

	taken := make(map[string]bool, len(studios))
	keep := make([]bool, len(studios))
	for i, studio := range studios {
		if derived[i] {
			continue
		}
		if taken[studio.Code] {
			s.log.Warn("skipping catalog item with duplicate code", "id", studio.ID, "code", studio.Code)
			continue
		}
		taken[studio.Code] = true
		keep[i] = true
	}
	for i := range studios {
		if !derived[i] {
			continue
		}
		if taken[studios[i].Code] {
			studios[i].Code = fmt.Sprintf("%s%d", studios[i].Code, studios[i].ID)
		}
		if taken[studios[i].Code] {
			s.log.Warn("skipping catalog item with duplicate code", "id", studios[i].ID, "code", studios[i].Code)
			continue
		}
		taken[studios[i].Code] = true
		keep[i] = true
	}

	out := studios[:0]
	for i, studio := range studios {
		if keep[i] {
			out = append(out, studio)
		}
	}
	return out
}

func toStudio(item ApiItem) (model.Studio, error) {
	name := strings.TrimSpace(item.Name)
	if item.ID <= 0 || name == "" {
		return model.Studio{}, fmt.Errorf("missing id or name")
	}
	if item.NumStudios <= 0 {
		return model.Studio{}, fmt.Errorf("studio %q has no units", name)
	}

	code := strings.ToUpper(strings.TrimSpace(item.Code))
	if code == "" {
		code = parse.StudioCode(name)
	}
	if code == "" {
		return model.Studio{}, fmt.Errorf("cannot derive a unit code for %q", name)
	}
	if _, err := parse.ParseUnit(code + "-1"); err != nil {
		return model.Studio{}, fmt.Errorf("invalid studio code %q", code)
	}

	return model.Studio{
		ID:         item.ID,
		Name:       name,
		Code:       code,
		Address:    strings.TrimSpace(item.Address),
		City:       strings.TrimSpace(item.City),
		Area:       strings.TrimSpace(item.Area),
		Latitude:   item.Latitude,
		Longitude:  item.Longitude,
		NumStudios: item.NumStudios,
		Facilities: datatypes.JSONSlice[string](nonNil(item.Facilities)),
		Photos:     datatypes.JSONSlice[string](nonNil(item.Photos)),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) fetchPage(ctx context.Context, page, pageSize int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = pageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
