// Package mongo provides the MongoDB backend adapter, built on the
// official mongo-driver. The filter template is a JSON document whose
// string values may embed {column} placeholders; result documents are
// flattened to plain scalars (ObjectIDs become hex strings, nested
// documents JSON text) before leaving the adapter boundary.
package mongo

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/logger"
	"github.com/rowstitch/rowstitch/pkg/record"
	"github.com/rowstitch/rowstitch/pkg/template"
)

func init() {
	_ = backend.Register("mongo", New)
}

// Mongo is the MongoDB adapter.
type Mongo struct {
	name       string
	connStr    string
	database   string
	collection string
	filter     *template.Filter
	projection bson.M

	client *mongo.Client
	coll   *mongo.Collection
	state  backend.State

	rowsReturned int64
	logger       *zap.Logger
}

// New creates a MongoDB adapter from its backend configuration.
func New(cfg *config.Backend) (backend.Backend, error) {
	database := cfg.Credentials["database"]
	if database == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "database is required in credentials")
	}
	collection := cfg.Credentials["collection"]
	if collection == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "collection is required in credentials")
	}
	if cfg.Filter == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "filter template is required")
	}

	filter, err := template.CompileFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}

	var projection bson.M
	if cfg.Projection != "" {
		if err := json.Unmarshal([]byte(cfg.Projection), &projection); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid projection JSON")
		}
	}

	return &Mongo{
		name:       cfg.Name,
		connStr:    cfg.Credentials["connection_string"],
		database:   database,
		collection: collection,
		filter:     filter,
		projection: projection,
		logger:     logger.Get().With(zap.String("backend", cfg.Name)),
	}, nil
}

// Name returns the backend's namespace prefix.
func (m *Mongo) Name() string {
	return m.name
}

// State reports the adapter's connection state.
func (m *Mongo) State() backend.State {
	return m.state
}

// Connect opens and verifies the MongoDB connection.
func (m *Mongo) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.connStr))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach MongoDB")
	}

	m.client = client
	m.coll = client.Database(m.database).Collection(m.collection)
	m.state = backend.StateConnected

	m.logger.Info("connected to MongoDB",
		zap.String("database", m.database),
		zap.String("collection", m.collection))
	return nil
}

// Lookup executes the bound filter for one input row.
func (m *Mongo) Lookup(ctx context.Context, row *record.Record) ([]*record.Record, error) {
	if m.state != backend.StateConnected {
		return nil, errors.New(errors.ErrorTypeConnection, "mongo backend not connected")
	}

	filter, err := m.filter.Bind(row)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if m.projection != nil {
		findOpts.SetProjection(m.projection)
	}

	cursor, err := m.coll.Find(ctx, bson.M(filter), findOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to execute find")
	}

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result documents")
	}

	results := make([]*record.Record, 0, len(docs))
	for _, doc := range docs {
		res := record.New()
		for _, elem := range doc {
			res.Set(elem.Key, flattenValue(elem.Value))
		}
		results = append(results, res)
	}

	m.rowsReturned += int64(len(results))
	m.logger.Debug("find returned", zap.Int("documents", len(results)))

	return results, nil
}

// Close releases the connection.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}

	err := m.client.Disconnect(ctx)
	m.client = nil
	m.coll = nil
	m.state = backend.StateDisconnected

	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close MongoDB connection")
	}

	m.logger.Info("MongoDB connection closed",
		zap.Int64("documents_returned", m.rowsReturned))
	return nil
}

// flattenValue converts BSON values to plain scalars. Document
// identifiers become hex strings; nested documents and arrays are
// rendered as JSON text.
func flattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v
	case int32:
		return int64(v)
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return string(v.Data)
	case bson.D, bson.M, bson.A:
		return jsonText(toPlain(v))
	default:
		return record.CoerceString(v)
	}
}

// toPlain converts nested BSON containers into plain maps and slices
// so they can be JSON-encoded.
func toPlain(value interface{}) interface{} {
	switch v := value.(type) {
	case bson.D:
		out := make(map[string]interface{}, len(v))
		for _, elem := range v {
			out[elem.Key] = toPlain(elem.Value)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			out[k] = toPlain(elem)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = toPlain(elem)
		}
		return out
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func jsonText(value interface{}) string {
	data, err := json.Marshal(value)
	if err != nil {
		return record.CoerceString(value)
	}
	return string(data)
}
