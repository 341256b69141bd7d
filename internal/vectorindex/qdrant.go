package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const (
	payloadContent = "content"
	payloadChunkID = "chunk_id"
)

type qdrantConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"api_key"`
	UseTLS bool   `json:"use_tls"`
}

func init() {
	Register("qdrant", func(args interface{}, env *Env) (Index, error) {
		cfg := &qdrantConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		return NewQdrant(cfg.Host, cfg.Port, cfg.APIKey, cfg.UseTLS)
	})
}

type qdrantIndex struct {
	client *qdrant.Client
}

func NewQdrant(host string, port int, apiKey string, useTLS bool) (Index, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &qdrantIndex{client: client}, nil
}

func qdrantDistance(metric Metric) qdrant.Distance {
	switch metric {
	case MetricL2:
		return qdrant.Distance_Euclid
	case MetricDot:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// isTransientGRPC reports gRPC failures worth retrying.
func isTransientGRPC(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	}
	return false
}

func wrapQdrantErr(op string, err error) error {
	if isTransientGRPC(err) {
		return unavailable(op, err)
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s: %v", appErr.ErrNotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (q *qdrantIndex) CreateCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", appErr.ErrInvalid)
	}
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return wrapQdrantErr("check collection", err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrantDistance(metric),
			}),
		})
		// losing a concurrent create is fine
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return wrapQdrantErr("create collection", err)
		}
		_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      MetaDocumentID,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return wrapQdrantErr("create document_id index", err)
		}
	}
	info, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return wrapQdrantErr("collection info", err)
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		return checkDimension(name, int(params.GetSize()), dimension)
	}
	return nil
}

func (q *qdrantIndex) Insert(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, it := range items {
		payload := map[string]*qdrant.Value{
			payloadContent: {Kind: &qdrant.Value_StringValue{StringValue: it.Text}},
			payloadChunkID: {Kind: &qdrant.Value_StringValue{StringValue: it.ID}},
			MetaDocumentID: {Kind: &qdrant.Value_StringValue{StringValue: it.DocumentID}},
		}
		for k, v := range it.Metadata {
			if _, reserved := payload[k]; reserved {
				continue
			}
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(it.ID),
			Vectors: qdrant.NewVectors(it.Vector...),
			Payload: payload,
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return wrapQdrantErr("upsert points", err)
	}
	return nil
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(MetaDocumentID, documentID)},
	}
}

func (q *qdrantIndex) Query(ctx context.Context, collection string, query Query) ([]Hit, error) {
	fetch, err := normalize(&query)
	if err != nil {
		return nil, err
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query.Vector...),
		Filter:         documentFilter(query.DocumentID),
		Limit:          qdrant.PtrOf(uint64(fetch)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapQdrantErr("query points", err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hit := Hit{
			ID:       p.GetId().GetUuid(),
			Score:    float64(p.GetScore()),
			Metadata: map[string]string{},
		}
		for k, v := range p.GetPayload() {
			var s string
			switch val := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				s = val.StringValue
			case *qdrant.Value_IntegerValue:
				s = strconv.FormatInt(val.IntegerValue, 10)
			default:
				continue
			}
			switch k {
			case payloadContent:
				hit.Text = s
			case payloadChunkID:
				hit.ID = s
			case MetaDocumentID:
				hit.DocumentID = s
			default:
				hit.Metadata[k] = s
			}
		}
		if dense := p.GetVectors().GetVector().GetDense(); dense != nil {
			hit.Vector = dense.GetData()
		}
		hits = append(hits, hit)
	}
	return finish(query, hits), nil
}

func (q *qdrantIndex) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: documentFilter(documentID),
			},
		},
	})
	if err != nil {
		return wrapQdrantErr("delete points", err)
	}
	return nil
}

func (q *qdrantIndex) Close() error {
	return q.client.Close()
}
