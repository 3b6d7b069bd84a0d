package databases

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnsupportedOperator is returned by the in-memory store for query or
// update operators it does not evaluate.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// NewMemoryClient returns a ClientHelper backed by process memory. Documents
// are stored as bson so decoding behaves like it does against mongo. It is
// meant for local development and tests, data is lost on exit.
func NewMemoryClient() ClientHelper {
	return &memoryClient{databases: map[string]*memoryDatabase{}}
}

type memoryClient struct {
	mu        sync.Mutex
	databases map[string]*memoryDatabase
}

type memoryDatabase struct {
	client      *memoryClient
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	mu     sync.RWMutex
	docs   []bson.M
	unique [][]string
}

type memorySingleResult struct {
	doc bson.M
	err error
}

type memoryInsertOneResult struct {
	id interface{}
}

type memoryCursor struct {
	docs []bson.M
}

func (mc *memoryClient) Database(name string) DatabaseHelper {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	db, ok := mc.databases[name]
	if !ok {
		db = &memoryDatabase{client: mc, collections: map[string]*memoryCollection{}}
		mc.databases[name] = db
	}
	return db
}

func (mc *memoryClient) Connect(ctx context.Context) error {
	return ctx.Err()
}

func (mc *memoryClient) Disconnect(ctx context.Context) error {
	return nil
}

func (md *memoryDatabase) Collection(name string) CollectionHelper {
	md.mu.Lock()
	defer md.mu.Unlock()
	coll, ok := md.collections[name]
	if !ok {
		coll = &memoryCollection{}
		md.collections[name] = coll
	}
	return coll
}

func (md *memoryDatabase) Client() ClientHelper {
	return md.client
}

func (c *memoryCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResultHelper {
	if err := ctx.Err(); err != nil {
		return &memorySingleResult{err: err}
	}
	find := options.Find().SetLimit(1)
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			find.SetSort(o.Sort)
		}
		if o.Skip != nil {
			find.SetSkip(*o.Skip)
		}
	}
	docs, err := c.query(filter, find)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	if len(docs) == 0 {
		return &memorySingleResult{err: mongo.ErrNoDocuments}
	}
	return &memorySingleResult{doc: docs[0]}
}

func (c *memoryCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (CursorHelper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	find := options.Find()
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			find.SetSort(o.Sort)
		}
		if o.Skip != nil {
			find.SetSkip(*o.Skip)
		}
		if o.Limit != nil {
			find.SetLimit(*o.Limit)
		}
	}
	docs, err := c.query(filter, find)
	if err != nil {
		return nil, err
	}
	return &memoryCursor{docs: docs}, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := toDocument(document)
	if err != nil {
		return nil, err
	}
	if id, ok := doc["_id"]; !ok || id == nil {
		doc["_id"] = primitive.NewObjectID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkUnique(doc, -1); err != nil {
		return nil, err
	}
	c.docs = append(c.docs, doc)
	return &memoryInsertOneResult{id: doc["_id"]}, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}
	_, _, res, err := c.modifyOne(filter, update, upsert)
	return res, err
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := toDocument(filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			return nil, err
		}
		if ok {
			c.docs = append(c.docs[:i:i], c.docs[i+1:]...)
			return &mongo.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &mongo.DeleteResult{}, nil
}

func (c *memoryCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) SingleResultHelper {
	if err := ctx.Err(); err != nil {
		return &memorySingleResult{err: err}
	}
	upsert := false
	after := false
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Upsert != nil {
			upsert = *o.Upsert
		}
		if o.ReturnDocument != nil {
			after = *o.ReturnDocument == options.After
		}
	}
	before, updated, _, err := c.modifyOne(filter, update, upsert)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	doc := before
	if after {
		doc = updated
	}
	if doc == nil {
		return &memorySingleResult{err: mongo.ErrNoDocuments}
	}
	return &memorySingleResult{doc: doc}
}

func (c *memoryCollection) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	keys, err := toDocumentD(model.Keys)
	if err != nil {
		return "", err
	}
	var fields, parts []string
	for _, e := range keys {
		fields = append(fields, e.Key)
		parts = append(parts, fmt.Sprintf("%s_%v", e.Key, e.Value))
	}
	if model.Options != nil && model.Options.Unique != nil && *model.Options.Unique {
		c.mu.Lock()
		c.unique = append(c.unique, fields)
		c.mu.Unlock()
	}
	return strings.Join(parts, "_"), nil
}

// query returns snapshots of the matching documents after sort, skip and limit
func (c *memoryCollection) query(filter interface{}, opts *options.FindOptions) ([]bson.M, error) {
	f, err := toDocument(filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	var out []bson.M
	for _, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	c.mu.RUnlock()

	if opts.Sort != nil {
		keys, err := toDocumentD(opts.Sort)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range keys {
				a, _ := lookup(out[i], k.Key)
				b, _ := lookup(out[j], k.Key)
				cmp := compareForSort(a, b)
				if cmp == 0 {
					continue
				}
				if direction(k.Value) < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if opts.Skip != nil {
		skip := int(*opts.Skip)
		if skip >= len(out) {
			return nil, nil
		}
		out = out[skip:]
	}
	if opts.Limit != nil && *opts.Limit > 0 && int(*opts.Limit) < len(out) {
		out = out[:*opts.Limit]
	}
	return out, nil
}

// modifyOne applies update to the first document matching filter. Stored
// documents are replaced, never mutated, so earlier snapshots stay valid.
func (c *memoryCollection) modifyOne(filter interface{}, update interface{}, upsert bool) (bson.M, bson.M, *mongo.UpdateResult, error) {
	f, err := toDocument(filter)
	if err != nil {
		return nil, nil, nil, err
	}
	u, err := toDocument(update)
	if err != nil {
		return nil, nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			continue
		}
		updated, err := cloneDocument(doc)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := applyUpdate(updated, u); err != nil {
			return nil, nil, nil, err
		}
		if err := c.checkUnique(updated, i); err != nil {
			return nil, nil, nil, err
		}
		c.docs[i] = updated
		modified := int64(0)
		if !reflect.DeepEqual(doc, updated) {
			modified = 1
		}
		return doc, updated, &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: modified}, nil
	}

	if !upsert {
		return nil, nil, &mongo.UpdateResult{}, nil
	}
	created := bson.M{}
	for k, v := range f {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if d, ok := asDocument(v); ok && isOperatorDocument(d) {
			continue
		}
		setPath(created, k, v)
	}
	if err := applyUpdate(created, u); err != nil {
		return nil, nil, nil, err
	}
	if id, ok := created["_id"]; !ok || id == nil {
		created["_id"] = primitive.NewObjectID()
	}
	if err := c.checkUnique(created, -1); err != nil {
		return nil, nil, nil, err
	}
	c.docs = append(c.docs, created)
	return nil, created, &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: created["_id"]}, nil
}

// checkUnique must be called with the write lock held. skip is the index of
// the document being replaced, or -1 for inserts.
func (c *memoryCollection) checkUnique(doc bson.M, skip int) error {
	indexes := append([][]string{{"_id"}}, c.unique...)
	for _, fields := range indexes {
		for i, other := range c.docs {
			if i == skip {
				continue
			}
			same := true
			for _, field := range fields {
				a, _ := lookup(doc, field)
				b, _ := lookup(other, field)
				if compareForSort(a, b) != 0 {
					same = false
					break
				}
			}
			if same {
				return mongo.WriteException{WriteErrors: []mongo.WriteError{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error dup key: %v", fields),
				}}}
			}
		}
	}
	return nil
}

func (sr *memorySingleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	b, err := bson.Marshal(sr.doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, v)
}

func (ior *memoryInsertOneResult) Decode() interface{} {
	return ior.id
}

// Decode fills v, which must be a pointer to a slice, like mongo.Cursor.All
func (cr *memoryCursor) Decode(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memory cursor: expected pointer to slice, got %T", v)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(cr.docs))
	for _, doc := range cr.docs {
		b, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(b, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

func toDocument(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func toDocumentD(v interface{}) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d bson.D
	if err := bson.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func cloneDocument(doc bson.M) (bson.M, error) {
	return toDocument(doc)
}

func asDocument(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return bson.M(d), true
	case bson.D:
		return d.Map(), true
	}
	return nil, false
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	}
	return nil, false
}

func isOperatorDocument(d bson.M) bool {
	if len(d) == 0 {
		return false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := asDocument(cur)
		if !ok {
			return nil, false
		}
		cur, ok = d[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.M, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func matches(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or":
			clauses, ok := asArray(cond)
			if !ok {
				return false, fmt.Errorf("%w: %s expects an array", ErrUnsupportedOperator, key)
			}
			matched := false
			for _, clause := range clauses {
				sub, ok := asDocument(clause)
				if !ok {
					return false, fmt.Errorf("%w: %s clause must be a document", ErrUnsupportedOperator, key)
				}
				m, err := matches(doc, sub)
				if err != nil {
					return false, err
				}
				if key == "$and" && !m {
					return false, nil
				}
				matched = matched || m
			}
			if key == "$or" && !matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
			}
			val, found := lookup(doc, key)
			m, err := matchCondition(val, found, cond)
			if err != nil || !m {
				return false, err
			}
		}
	}
	return true, nil
}

func matchCondition(val interface{}, found bool, cond interface{}) (bool, error) {
	ops, ok := asDocument(cond)
	if !ok || !isOperatorDocument(ops) {
		return equals(val, found, cond), nil
	}
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !equals(val, found, arg) {
				return false, nil
			}
		case "$ne":
			if equals(val, found, arg) {
				return false, nil
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !found {
				return false, nil
			}
			cmp, ok := compareValues(val, arg)
			if !ok {
				return false, nil
			}
			if (op == "$gt" && cmp <= 0) || (op == "$gte" && cmp < 0) ||
				(op == "$lt" && cmp >= 0) || (op == "$lte" && cmp > 0) {
				return false, nil
			}
		case "$in":
			candidates, ok := asArray(arg)
			if !ok {
				return false, fmt.Errorf("%w: $in expects an array", ErrUnsupportedOperator)
			}
			in := false
			for _, candidate := range candidates {
				if equals(val, found, candidate) {
					in = true
					break
				}
			}
			if !in {
				return false, nil
			}
		case "$exists":
			want, _ := arg.(bool)
			if want != found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
	}
	return true, nil
}

// equals follows mongo semantics: a null condition also matches a missing
// field and a scalar condition matches any element of an array field.
func equals(val interface{}, found bool, cond interface{}) bool {
	if cond == nil {
		return !found || val == nil
	}
	if !found {
		return false
	}
	if arr, ok := asArray(val); ok {
		if _, condIsArray := asArray(cond); !condIsArray {
			for _, elem := range arr {
				if cmp, ok := compareValues(elem, cond); ok && cmp == 0 {
					return true
				}
			}
			return false
		}
	}
	cmp, ok := compareValues(val, cond)
	return ok && cmp == 0
}

// bson type brackets, in mongo sort order
const (
	rankNull = iota
	rankNumber
	rankString
	rankDocument
	rankArray
	rankObjectID
	rankBool
	rankDate
	rankTimestamp
	rankOther
)

func canonical(v interface{}) (int, interface{}) {
	switch t := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull, nil
	case int:
		return rankNumber, float64(t)
	case int32:
		return rankNumber, float64(t)
	case int64:
		return rankNumber, float64(t)
	case float64:
		return rankNumber, t
	case string:
		return rankString, t
	case primitive.ObjectID:
		return rankObjectID, t.Hex()
	case bool:
		return rankBool, t
	case primitive.DateTime:
		return rankDate, int64(t)
	case time.Time:
		return rankDate, t.UnixMilli()
	case primitive.Timestamp:
		return rankTimestamp, uint64(t.T)<<32 | uint64(t.I)
	case bson.A, []interface{}:
		return rankArray, t
	case bson.M, bson.D, map[string]interface{}:
		return rankDocument, t
	}
	return rankOther, v
}

// compareValues reports ok=false when the values sit in different type
// brackets, which never match in a query.
func compareValues(a, b interface{}) (int, bool) {
	ra, va := canonical(a)
	rb, vb := canonical(b)
	if ra != rb {
		return 0, false
	}
	switch x := va.(type) {
	case nil:
		return 0, true
	case float64:
		return cmpOrdered(x, vb.(float64)), true
	case string:
		return cmpOrdered(x, vb.(string)), true
	case int64:
		return cmpOrdered(x, vb.(int64)), true
	case uint64:
		return cmpOrdered(x, vb.(uint64)), true
	case bool:
		y := vb.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	if reflect.DeepEqual(va, vb) {
		return 0, true
	}
	return 0, false
}

func compareForSort(a, b interface{}) int {
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	ra, _ := canonical(a)
	rb, _ := canonical(b)
	return cmpOrdered(ra, rb)
}

func cmpOrdered[T int | int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func direction(v interface{}) int {
	switch d := v.(type) {
	case int:
		return d
	case int32:
		return int(d)
	case int64:
		return int(d)
	case float64:
		return int(d)
	}
	return 1
}

func applyUpdate(doc bson.M, update bson.M) error {
	if !isOperatorDocument(update) {
		return fmt.Errorf("%w: replacement documents", ErrUnsupportedOperator)
	}
	for op, raw := range update {
		fields, ok := asDocument(raw)
		if !ok {
			return fmt.Errorf("%w: %s expects a document", ErrUnsupportedOperator, op)
		}
		for path, value := range fields {
			switch op {
			case "$set", "$setOnInsert":
				setPath(doc, path, value)
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				current, _ := lookup(doc, path)
				sum, err := addNumbers(current, value)
				if err != nil {
					return err
				}
				setPath(doc, path, sum)
			case "$max", "$min":
				current, found := lookup(doc, path)
				cmp, ok := compareValues(value, current)
				if !found || !ok || (op == "$max" && cmp > 0) || (op == "$min" && cmp < 0) {
					setPath(doc, path, value)
				}
			default:
				return fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
			}
		}
	}
	return nil
}

func addNumbers(current, delta interface{}) (interface{}, error) {
	toInt := func(v interface{}) (int64, bool) {
		switch n := v.(type) {
		case nil:
			return 0, true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
		return 0, false
	}
	a, aInt := toInt(current)
	b, bInt := toInt(delta)
	if aInt && bInt {
		return a + b, nil
	}
	ra, fa := canonical(current)
	rb, fb := canonical(delta)
	if (ra != rankNumber && current != nil) || rb != rankNumber {
		return nil, fmt.Errorf("%w: $inc on a non numeric field", ErrUnsupportedOperator)
	}
	x, _ := fa.(float64)
	return x + fb.(float64), nil
}
