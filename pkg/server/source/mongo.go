package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// DefaultMongoDatabase is used when the URL names no database.
const DefaultMongoDatabase = "graphlens"

// Mongo is a dataset in the vertices and edges collections of one MongoDB
// database. Documents use the wire field names (id, label, head_id...).
type Mongo struct {
	client   *mongo.Client
	vertices *mongo.Collection
	edges    *mongo.Collection
}

// OpenMongo connects to uri and pings the server.
func OpenMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, gerrors.Wrap(gerrors.ErrCodeNetwork, err, "ping mongodb")
	}
	db := client.Database(mongoDatabase(uri))
	return &Mongo{client: client, vertices: db.Collection("vertices"), edges: db.Collection("edges")}, nil
}

func mongoDatabase(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return DefaultMongoDatabase
}

// Load reads both collections.
func (m *Mongo) Load(ctx context.Context) (graph.Batch, error) {
	var b graph.Batch
	cur, err := m.vertices.Find(ctx, bson.D{})
	if err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeNetwork, err, "find vertices")
	}
	if err := cur.All(ctx, &b.Vertices); err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "decode vertices")
	}
	cur, err = m.edges.Find(ctx, bson.D{})
	if err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeNetwork, err, "find edges")
	}
	if err := cur.All(ctx, &b.Edges); err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "decode edges")
	}
	return b, nil
}

// PutEdge implements Writer.
func (m *Mongo) PutEdge(ctx context.Context, e graph.EdgeRecord) error {
	_, err := m.edges.ReplaceOne(ctx, bson.M{"id": e.ID}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeNetwork, err, "put edge %s", e.ID)
	}
	return nil
}

// DeleteVertex implements Writer.
func (m *Mongo) DeleteVertex(ctx context.Context, id graph.ID) error {
	filter := bson.M{"$or": bson.A{bson.M{"head_id": id}, bson.M{"tail_id": id}}}
	if _, err := m.edges.DeleteMany(ctx, filter); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeNetwork, err, "delete edges of %s", id)
	}
	if _, err := m.vertices.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeNetwork, err, "delete vertex %s", id)
	}
	return nil
}

// DeleteEdge implements Writer.
func (m *Mongo) DeleteEdge(ctx context.Context, id graph.ID) error {
	if _, err := m.edges.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeNetwork, err, "delete edge %s", id)
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var (
	_ Source = (*Mongo)(nil)
	_ Writer = (*Mongo)(nil)
)
