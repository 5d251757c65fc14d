package telemetry

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/thotranphuc276/person-detection/internal/bootstrap"
)

// ElasticOptions configures the Elasticsearch client.
type ElasticOptions struct {
	Address            string
	MaxRetries         int
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
}

// ElasticStore writes events to Elasticsearch. It satisfies both Store and
// bootstrap.Conn.
type ElasticStore struct {
	client    *elasticsearch.Client
	transport *http.Transport
	address   string
}

// DialElasticsearch returns a dial function for the bootstrap connector. The
// client is created lazily; liveness is checked by Ping.
func DialElasticsearch(opts ElasticOptions) bootstrap.DialFunc[*ElasticStore] {
	return func(ctx context.Context) (*ElasticStore, error) {
		return NewElasticStore(opts)
	}
}

func NewElasticStore(opts ElasticOptions) (*ElasticStore, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.RequestTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:           []string{opts.Address},
		Transport:           transport,
		MaxRetries:          opts.MaxRetries,
		CompressRequestBody: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticStore{client: client, transport: transport, address: opts.Address}, nil
}

// Ping succeeds only when the cluster answers with a non-error status.
func (s *ElasticStore) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping %s: %w", s.address, err)
	}
	return checkResponse(res)
}

// Index writes document into index with refresh disabled.
func (s *ElasticStore) Index(ctx context.Context, index string, document []byte) error {
	res, err := s.client.Index(
		index,
		bytes.NewReader(document),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithRefresh("false"),
	)
	if err != nil {
		return err
	}
	return checkResponse(res)
}

// PutTemplate creates or replaces a legacy index template.
func (s *ElasticStore) PutTemplate(ctx context.Context, name string, body []byte) error {
	res, err := s.client.Indices.PutTemplate(
		name,
		bytes.NewReader(body),
		s.client.Indices.PutTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	return checkResponse(res)
}

func (s *ElasticStore) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func checkResponse(res *esapi.Response) error {
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("elasticsearch responded %s: %s", res.Status(), bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
