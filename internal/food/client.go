package food

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config drives Open Food Facts client behaviour.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	CacheTTL   time.Duration
	PageSize   int
	RetryDelay time.Duration
}

// ProductSummary is one search hit, trimmed for list views.
type ProductSummary struct {
	ID              string  `json:"id"`
	ProductName     string  `json:"product_name"`
	Brands          string  `json:"brands"`
	ImageURL        *string `json:"image_url"`
	NutritionGrade  string  `json:"nutrition_grade"`
	IngredientsText string  `json:"ingredients_text"`
}

// Product is the detailed record for one barcode.
type Product struct {
	ID                  string         `json:"id"`
	ProductName         string         `json:"product_name"`
	Brands              string         `json:"brands"`
	Categories          string         `json:"categories"`
	Labels              string         `json:"labels"`
	Quantity            string         `json:"quantity"`
	Packaging           string         `json:"packaging"`
	ManufacturingPlaces string         `json:"manufacturing_places"`
	Origins             string         `json:"origins"`
	Countries           string         `json:"countries"`
	ImageURL            *string        `json:"image_url"`
	ImageNutritionURL   *string        `json:"image_nutrition_url"`
	ImageIngredientsURL *string        `json:"image_ingredients_url"`
	NutritionGrade      string         `json:"nutrition_grade"`
	Nutriments          map[string]any `json:"nutriments"`
	NutriscoreScore     *float64       `json:"nutriscore_score"`
	IngredientsText     string         `json:"ingredients_text"`
	Allergens           string         `json:"allergens"`
	Traces              string         `json:"traces"`
	NovaGroup           any            `json:"nova_group"`
	EcoscoreGrade       string         `json:"ecoscore_grade"`
	AdditivesTags       []string       `json:"additives_tags"`
}

var (
	// ErrNotFound is returned when a barcode has no product record.
	ErrNotFound = errors.New("product not found")
	// ErrUpstream wraps transport and status failures of the food database.
	ErrUpstream = errors.New("food database unavailable")
)

// Client performs Open Food Facts lookups with a TTL cache and a single
// retry on rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	pageSize   int
	cacheTTL   time.Duration
	retryDelay time.Duration
	cache      sync.Map // map[string]cacheEntry
}

type cacheEntry struct {
	at    time.Time
	value any
}

// NewClient constructs a client, filling defaults for unset fields.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://world.openfoodfacts.org"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "UnlabelBackend/1.0 (food label intelligence)"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
		pageSize:   pageSize,
		cacheTTL:   ttl,
		retryDelay: retryDelay,
	}
}

// Search returns products matching query. An empty result is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]ProductSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []ProductSummary{}, nil
	}
	key := "search:" + strings.ToLower(query)
	if cached, ok := c.cached(key); ok {
		return cached.([]ProductSummary), nil
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", fmt.Sprintf("%d", c.pageSize))

	var payload searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/cgi/search.pl?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	results := make([]ProductSummary, 0, len(payload.Products))
	for _, p := range payload.Products {
		results = append(results, ProductSummary{
			ID:              p.Code,
			ProductName:     firstNonEmpty(p.ProductName, "Unknown Product"),
			Brands:          p.Brands,
			ImageURL:        optional(p.ImageFrontURL),
			NutritionGrade:  strings.ToUpper(firstNonEmpty(p.NutritionGrades, "N/A")),
			IngredientsText: firstNonEmpty(p.IngredientsText, "Ingredients not available."),
		})
	}
	c.cache.Store(key, cacheEntry{at: time.Now(), value: results})
	return results, nil
}

// Product fetches one product by barcode.
func (c *Client) Product(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, ErrNotFound
	}
	key := "product:" + barcode
	if cached, ok := c.cached(key); ok {
		return cached.(Product), nil
	}

	var payload productResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/v2/product/"+url.PathEscape(barcode), &payload); err != nil {
		return Product{}, err
	}
	if payload.Status != 1 || payload.Product == nil {
		return Product{}, ErrNotFound
	}

	p := payload.Product
	product := Product{
		ID:                  firstNonEmpty(p.Code, barcode),
		ProductName:         firstNonEmpty(p.ProductName, "Unknown Product"),
		Brands:              p.Brands,
		Categories:          p.Categories,
		Labels:              p.Labels,
		Quantity:            p.Quantity,
		Packaging:           p.Packaging,
		ManufacturingPlaces: p.ManufacturingPlaces,
		Origins:             p.Origins,
		Countries:           p.Countries,
		ImageURL:            optional(p.ImageFrontURL),
		ImageNutritionURL:   optional(p.ImageNutritionURL),
		ImageIngredientsURL: optional(p.ImageIngredientsURL),
		NutritionGrade:      strings.ToUpper(firstNonEmpty(p.NutritionGrades, "N/A")),
		Nutriments:          p.Nutriments,
		NutriscoreScore:     p.NutriscoreScore,
		IngredientsText:     firstNonEmpty(p.IngredientsText, "Ingredients not available."),
		Allergens:           p.Allergens,
		Traces:              p.Traces,
		NovaGroup:           p.NovaGroup,
		EcoscoreGrade:       strings.ToUpper(p.EcoscoreGrade),
		AdditivesTags:       p.AdditivesTags,
	}
	if product.Nutriments == nil {
		product.Nutriments = map[string]any{}
	}
	if product.AdditivesTags == nil {
		product.AdditivesTags = []string{}
	}
	c.cache.Store(key, cacheEntry{at: time.Now(), value: product})
	return product, nil
}

func (c *Client) cached(key string) (any, bool) {
	entry, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}
	cached := entry.(cacheEntry)
	if time.Since(cached.at) < c.cacheTTL {
		return cached.value, true
	}
	c.cache.Delete(key)
	return nil, false
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// back off once and retry
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
		resp, err = c.do(ctx, endpoint)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req)
}

type searchResponse struct {
	Products []offProduct `json:"products"`
}

type productResponse struct {
	Status  int         `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	Code                string         `json:"code"`
	ProductName         string         `json:"product_name"`
	Brands              string         `json:"brands"`
	Categories          string         `json:"categories"`
	Labels              string         `json:"labels"`
	Quantity            string         `json:"quantity"`
	Packaging           string         `json:"packaging"`
	ManufacturingPlaces string         `json:"manufacturing_places"`
	Origins             string         `json:"origins"`
	Countries           string         `json:"countries"`
	ImageFrontURL       string         `json:"image_front_url"`
	ImageNutritionURL   string         `json:"image_nutrition_url"`
	ImageIngredientsURL string         `json:"image_ingredients_url"`
	NutritionGrades     string         `json:"nutrition_grades"`
	Nutriments          map[string]any `json:"nutriments"`
	NutriscoreScore     *float64       `json:"nutriscore_score"`
	IngredientsText     string         `json:"ingredients_text"`
	Allergens           string         `json:"allergens"`
	Traces              string         `json:"traces"`
	NovaGroup           any            `json:"nova_group"`
	EcoscoreGrade       string         `json:"ecoscore_grade"`
	AdditivesTags       []string       `json:"additives_tags"`
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
