// Package qdrant is a VectorIndex backed by a Qdrant collection over gRPC.
// The collection uses cosine distance and is created on first upsert.
package qdrant

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"caserag/internal/domain"
	"caserag/internal/logger"
	"caserag/internal/vectorstore"
)

// Payload keys.
const (
	payloadChunkID = "chunk_id"
	payloadText    = "text"
)

var _ domain.VectorIndex = (*Storage)(nil)

// Config configures the Qdrant connection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Timeout    time.Duration
}

// Storage talks to one Qdrant collection.
type Storage struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	apiKey      string
	collection  string
	timeout     time.Duration

	mu        sync.Mutex
	dimension int
}

// NewStorage connects lazily to Qdrant; the first RPC dials.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection name is required", domain.ErrConfiguration)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", target, err)
	}
	return newStorage(conn, cfg), nil
}

func newStorage(conn *grpc.ClientConn, cfg Config) *Storage {
	return &Storage{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		apiKey:      cfg.APIKey,
		collection:  cfg.Collection,
		timeout:     cfg.Timeout,
	}
}

// rpcContext applies the call timeout and API key.
func (s *Storage) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	if s.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
	}
	return ctx, cancel
}

// collectionDimension returns the vector size of the collection, or 0 when
// it does not exist.
func (s *Storage) collectionDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 {
		return s.dimension, nil
	}

	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	list, err := s.collections.List(rctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return 0, fmt.Errorf("failed to list collections: %w", err)
	}
	exists := false
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			exists = true
			break
		}
	}
	if !exists {
		return 0, nil
	}

	info, err := s.collections.Get(rctx, &qdrantclient.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return 0, fmt.Errorf("failed to get collection %s: %w", s.collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	s.dimension = int(size)
	return s.dimension, nil
}

// ensureCollection creates the collection for dim-sized vectors when missing.
func (s *Storage) ensureCollection(ctx context.Context, dim int) error {
	stored, err := s.collectionDimension(ctx)
	if err != nil {
		return err
	}
	if stored != 0 {
		return vectorstore.CheckDimension(stored, dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	logger.Info("Creating Qdrant collection %s (%d dimensions)", s.collection, dim)
	_, err = s.collections.Create(rctx, &qdrantclient.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dim),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.dimension = dim
	return nil
}

// Upsert writes chunks as points keyed by a UUID derived from ChunkID.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	dim, err := vectorstore.BatchDimension(chunks)
	if err != nil || dim == 0 {
		return err
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*qdrantclient.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = toPoint(c)
	}
	wait := true
	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	logger.Debug("Upserting batch of %d points", len(points))
	if _, err := s.points.Upsert(rctx, &qdrantclient.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Query searches the collection. Distance is 1 - cosine score.
func (s *Storage) Query(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	stored, err := s.collectionDimension(ctx)
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(stored, len(vector)); err != nil {
		return nil, err
	}
	qf, ok := toFilter(filter)
	if !ok {
		return nil, nil
	}

	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	resp, err := s.points.Search(rctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Filter:         qf,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search Qdrant: %w", err)
	}

	hits := make([]domain.Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, toHit(p))
	}
	return hits, nil
}

// Count returns the exact number of points; a missing collection counts 0.
func (s *Storage) Count(ctx context.Context) (int, error) {
	stored, err := s.collectionDimension(ctx)
	if err != nil || stored == 0 {
		return 0, err
	}
	exact := true
	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	resp, err := s.points.Count(rctx, &qdrantclient.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Reset drops the collection. It is recreated by the next upsert.
func (s *Storage) Reset(ctx context.Context) error {
	stored, err := s.collectionDimension(ctx)
	if err != nil {
		return err
	}
	if stored == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rctx, cancel := s.rpcContext(ctx)
	defer cancel()
	logger.Info("Deleting Qdrant collection %s", s.collection)
	if _, err := s.collections.Delete(rctx, &qdrantclient.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	s.dimension = 0
	return nil
}

// Close closes the gRPC connection.
func (s *Storage) Close() error { return s.conn.Close() }

// PointID derives the Qdrant point id of a chunk. Qdrant only accepts
// integers and UUIDs, so chunk ids map to name-based UUIDs.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("caserag:"+chunkID)).String()
}

func stringValue(v string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: v}}
}

func intValue(v int) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(v)}}
}

func toPoint(c domain.EmbeddedChunk) *qdrantclient.PointStruct {
	return &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: PointID(c.ChunkID)},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: c.Vector},
			},
		},
		Payload: map[string]*qdrantclient.Value{
			payloadChunkID:              stringValue(c.ChunkID),
			payloadText:                 stringValue(c.Text),
			domain.MetaSourceDocumentID: stringValue(c.SourceDocumentID),
			domain.MetaPageNumber:       intValue(c.PageNumber),
			domain.MetaChunkIndex:       intValue(c.ChunkIndex),
		},
	}
}

func toHit(p *qdrantclient.ScoredPoint) domain.Hit {
	payload := p.GetPayload()
	return domain.Hit{
		ChunkID: payload[payloadChunkID].GetStringValue(),
		Text:    payload[payloadText].GetStringValue(),
		Metadata: domain.Metadata{
			SourceDocumentID: payload[domain.MetaSourceDocumentID].GetStringValue(),
			PageNumber:       int(payload[domain.MetaPageNumber].GetIntegerValue()),
			ChunkIndex:       int(payload[domain.MetaChunkIndex].GetIntegerValue()),
		},
		Distance: max(0, 1-float64(p.GetScore())),
	}
}

var errUnmatchable = errors.New("filter can match nothing")

func keywordCondition(key, value string) *qdrantclient.Condition {
	return &qdrantclient.Condition{
		ConditionOneOf: &qdrantclient.Condition_Field{
			Field: &qdrantclient.FieldCondition{
				Key:   key,
				Match: &qdrantclient.Match{MatchValue: &qdrantclient.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func integerCondition(key, value string) (*qdrantclient.Condition, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, errUnmatchable
	}
	return &qdrantclient.Condition{
		ConditionOneOf: &qdrantclient.Condition_Field{
			Field: &qdrantclient.FieldCondition{
				Key:   key,
				Match: &qdrantclient.Match{MatchValue: &qdrantclient.Match_Integer{Integer: n}},
			},
		},
	}, nil
}

// toFilter translates f into a Qdrant filter. ok is false when f can match
// nothing, so the search can be skipped.
func toFilter(f domain.Filter) (filter *qdrantclient.Filter, ok bool) {
	if len(f) == 0 {
		return nil, true
	}
	var must []*qdrantclient.Condition
	for _, key := range []string{domain.MetaSourceDocumentID, domain.MetaPageNumber, domain.MetaChunkIndex} {
		v, present := f[key]
		if !present {
			continue
		}
		if key == domain.MetaSourceDocumentID {
			must = append(must, keywordCondition(key, v))
			continue
		}
		c, err := integerCondition(key, v)
		if err != nil {
			return nil, false
		}
		must = append(must, c)
	}
	if len(must) != len(f) {
		// unknown keys never match
		return nil, false
	}
	return &qdrantclient.Filter{Must: must}, true
}
