package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"timed-quiz/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultURL    = "https://opentdb.com/api.php"
	DefaultAmount = 5
)

// RawQuestion mirrors the OpenTriviaDB question payload.
type RawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []RawQuestion `json:"results"`
}

// OpenTDB fetches multiple-choice questions from the Open Trivia DB API.
// Concurrent fetches share one request because the API rate limits per IP;
// every caller still gets its own option order.
type OpenTDB struct {
	client     *http.Client
	url        string
	amount     int
	category   int
	difficulty string
	sf         singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

// OpenTDBOption customizes an OpenTDB client.
type OpenTDBOption func(*OpenTDB)

func WithHTTPClient(client *http.Client) OpenTDBOption {
	return func(c *OpenTDB) { c.client = client }
}

func WithURL(rawURL string) OpenTDBOption {
	return func(c *OpenTDB) {
		if rawURL != "" {
			c.url = rawURL
		}
	}
}

func WithAmount(amount int) OpenTDBOption {
	return func(c *OpenTDB) {
		if amount > 0 {
			c.amount = amount
		}
	}
}

// WithCategory restricts questions to an OpenTDB category id; 0 means any.
func WithCategory(category int) OpenTDBOption {
	return func(c *OpenTDB) { c.category = category }
}

// WithDifficulty restricts questions to easy, medium or hard; empty means any.
func WithDifficulty(difficulty string) OpenTDBOption {
	return func(c *OpenTDB) { c.difficulty = difficulty }
}

// WithRand injects the random source used to shuffle options.
func WithRand(rnd *rand.Rand) OpenTDBOption {
	return func(c *OpenTDB) { c.rnd = rnd }
}

func NewOpenTDB(opts ...OpenTDBOption) *OpenTDB {
	c := &OpenTDB{
		client: http.DefaultClient,
		url:    DefaultURL,
		amount: DefaultAmount,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns shuffled, unescaped questions. Every failure wraps domain.ErrFetch.
func (c *OpenTDB) Fetch(ctx context.Context) ([]domain.Question, error) {
	raw, err := c.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, domain.ErrNoQuestions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildQuestions(raw, c.rnd)
}

// FetchRaw performs the API request. The shared request runs on a context
// detached from the callers and bounded by the fetch timeout, so one caller
// giving up does not fail the others; that caller alone returns early.
func (c *OpenTDB) FetchRaw(ctx context.Context) ([]RawQuestion, error) {
	ch := c.sf.DoChan(c.requestURL(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout())
		defer cancel()
		return c.fetchRaw(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]RawQuestion), nil
	}
}

func (c *OpenTDB) timeout() time.Duration {
	if c.client != nil && c.client.Timeout > 0 {
		return c.client.Timeout
	}
	return DefaultTimeout
}

func (c *OpenTDB) fetchRaw(ctx context.Context) ([]RawQuestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: opentdb returned status %d", domain.ErrFetch, resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", domain.ErrFetch, err)
	}

	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("%w: opentdb response_code=%d", domain.ErrFetch, payload.ResponseCode)
	}
	return payload.Results, nil
}

func (c *OpenTDB) requestURL() string {
	query := url.Values{}
	query.Set("amount", strconv.Itoa(c.amount))
	query.Set("type", "multiple")
	if c.category > 0 {
		query.Set("category", strconv.Itoa(c.category))
	}
	if c.difficulty != "" {
		query.Set("difficulty", c.difficulty)
	}
	return c.url + "?" + query.Encode()
}

// BuildQuestions converts API records into questions, shuffling the incorrect
// answers together with the correct one.
func BuildQuestions(raw []RawQuestion, rnd *rand.Rand) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(raw))
	for _, item := range raw {
		question := buildQuestion(item, rnd)
		if err := question.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func buildQuestion(raw RawQuestion, rnd *rand.Rand) domain.Question {
	options := make([]string, 0, len(raw.IncorrectAnswers)+1)
	for _, incorrect := range raw.IncorrectAnswers {
		options = append(options, html.UnescapeString(incorrect))
	}
	correct := html.UnescapeString(raw.CorrectAnswer)
	options = append(options, correct)

	rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return domain.Question{
		Text:          html.UnescapeString(raw.Question),
		Options:       options,
		CorrectOption: correct,
	}
}
