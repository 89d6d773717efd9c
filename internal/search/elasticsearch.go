package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/models"
)

// ElasticClient indexes settled payments for admin search
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// paymentDocument is the flattened shape stored in the payments index
type paymentDocument struct {
	ReceiptNumber  string    `json:"receipt_number"`
	RegistrationID string    `json:"registration_id"`
	PlayerName     string    `json:"player_name"`
	GuardianName   string    `json:"guardian_name"`
	GuardianPhone  string    `json:"guardian_phone"`
	EventName      string    `json:"event_name"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Channel        string    `json:"channel"`
	PaidAt         time.Time `json:"paid_at"`
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{config: cfg, enabled: false}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// IndexPayment indexes a settled payment. Indexing runs after the settlement
// transaction commits; failures are reported to the caller for logging but
// never undo the credit.
func (c *ElasticClient) IndexPayment(ctx context.Context, payment *models.Payment, registration *models.Registration, event *models.Event) error {
	if !c.enabled {
		return nil
	}

	doc := paymentDocument{
		ReceiptNumber:  payment.ReceiptNumber,
		RegistrationID: registration.ID.String(),
		PlayerName:     registration.FullName(),
		GuardianName:   registration.GuardianFullName,
		GuardianPhone:  registration.GuardianPhoneNumber,
		EventName:      event.Name,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Channel:        payment.Channel,
		PaidAt:         payment.PaidAt,
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payment document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: payment.ReceiptNumber,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Info().Str("receipt_number", payment.ReceiptNumber).Msg("Payment indexed")
	return nil
}

// SearchPayments searches the payments index with the given query
func (c *ElasticClient) SearchPayments(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	if !c.enabled {
		return nil, errors.New("search is disabled")
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}

	return docs, nil
}
