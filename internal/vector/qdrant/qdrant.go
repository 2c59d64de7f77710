// Package qdrant persists the vector index in Qdrant. Each build writes a
// fresh generation collection and then repoints a stable alias at it, so
// readers only ever see complete generations.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/courtside/internal/vector"
)

const (
	upsertBatch = 256
	scrollPage  = 512
)

// Store implements vector.Store on a Qdrant alias.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	alias       string
}

// New dials Qdrant's gRPC port.
func New(ctx context.Context, host string, port int, alias string) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return NewWithConn(conn, alias), nil
}

// NewWithConn wraps an existing connection. Close closes it.
func NewWithConn(conn *grpc.ClientConn, alias string) *Store {
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		alias:       alias,
	}
}

// Save writes snap into a new generation and swaps the alias over to it.
// The previous generation is dropped only after the swap.
func (s *Store) Save(ctx context.Context, snap *vector.Snapshot) error {
	gen := generationName(s.alias, snap.Meta.BuiltAt)
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: gen,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(snap.Meta.Dimension),
			Distance: pb.Distance_Euclid,
		}}},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", gen, err)
	}

	if err := s.upsert(ctx, gen, snap); err != nil {
		s.drop(ctx, gen)
		return err
	}

	previous, err := s.current(ctx)
	if err != nil {
		s.drop(ctx, gen)
		return err
	}
	actions := []*pb.AliasOperations{}
	if previous != "" {
		actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_DeleteAlias{
			DeleteAlias: &pb.DeleteAlias{AliasName: s.alias},
		}})
	}
	actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
		CreateAlias: &pb.CreateAlias{CollectionName: gen, AliasName: s.alias},
	}})
	if _, err := s.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		s.drop(ctx, gen)
		return fmt.Errorf("switching alias %s: %w", s.alias, err)
	}

	if previous != "" && previous != gen {
		s.drop(ctx, previous)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, collection string, snap *vector.Snapshot) error {
	wait := true
	for lo := 0; lo < len(snap.Chunks); lo += upsertBatch {
		hi := min(lo+upsertBatch, len(snap.Chunks))
		points := make([]*pb.PointStruct, 0, hi-lo)
		for _, c := range snap.Chunks[lo:hi] {
			points = append(points, &pb.PointStruct{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(c.Ordinal)}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}}},
				Payload: chunkPayload(c, snap.Meta.Model),
			})
		}
		_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", lo, hi, err)
		}
	}
	return nil
}

// Load scrolls the aliased generation. No alias means vector.ErrNotBuilt.
func (s *Store) Load(ctx context.Context) (*vector.Snapshot, error) {
	gen, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if gen == "" {
		return nil, vector.ErrNotBuilt
	}

	snap := &vector.Snapshot{}
	limit := uint32(scrollPage)
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.alias,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling %s: %w", s.alias, err)
		}
		for _, pt := range resp.GetResult() {
			c := chunkFromPayload(pt.GetPayload())
			c.Ordinal = int(pt.GetId().GetNum())
			c.Embedding = pt.GetVectors().GetVector().GetData()
			if snap.Meta.Model == "" {
				snap.Meta.Model = pt.GetPayload()["model"].GetStringValue()
			}
			snap.Chunks = append(snap.Chunks, c)
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	sort.Slice(snap.Chunks, func(i, j int) bool { return snap.Chunks[i].Ordinal < snap.Chunks[j].Ordinal })
	snap.Meta.Count = len(snap.Chunks)
	if len(snap.Chunks) > 0 {
		snap.Meta.Dimension = len(snap.Chunks[0].Embedding)
	}
	snap.Meta.BuiltAt = generationTime(s.alias, gen)
	return snap, nil
}

// current returns the collection the alias points to, or "".
func (s *Store) current(ctx context.Context) (string, error) {
	resp, err := s.collections.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("listing aliases: %w", err)
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == s.alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (s *Store) drop(ctx context.Context, collection string) {
	// best effort; a leftover generation is never aliased
	_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: collection})
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func generationName(alias string, builtAt time.Time) string {
	if builtAt.IsZero() {
		builtAt = time.Now()
	}
	return fmt.Sprintf("%s_%d", alias, builtAt.UnixNano())
}

func generationTime(alias, collection string) time.Time {
	var nanos int64
	if _, err := fmt.Sscanf(strings.TrimPrefix(collection, alias+"_"), "%d", &nanos); err != nil {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}

func chunkPayload(c vector.Chunk, model string) map[string]*pb.Value {
	return map[string]*pb.Value{
		"id":     {Kind: &pb.Value_StringValue{StringValue: c.ID}},
		"source": {Kind: &pb.Value_StringValue{StringValue: c.Source}},
		"text":   {Kind: &pb.Value_StringValue{StringValue: c.Text}},
		"model":  {Kind: &pb.Value_StringValue{StringValue: model}},
	}
}

func chunkFromPayload(p map[string]*pb.Value) vector.Chunk {
	return vector.Chunk{
		ID:     p["id"].GetStringValue(),
		Source: p["source"].GetStringValue(),
		Text:   p["text"].GetStringValue(),
	}
}

var _ vector.Store = (*Store)(nil)
