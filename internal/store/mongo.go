package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

const (
	TransactionsCollection = "orange_transactions"
	DeliveriesCollection   = "orange_webhook_deliveries"
	StateCollection        = "orange_provider_state"
)

const opTimeout = 5 * time.Second

func terminalStatuses() bson.A {
	out := bson.A{}
	for _, s := range models.TerminalStatuses {
		out = append(out, s)
	}
	return out
}

// NewMongo returns the MongoDB-backed stores.
func NewMongo(db *mongo.Database) Stores {
	return Stores{
		Transactions: &MongoTransactions{coll: db.Collection(TransactionsCollection)},
		Deliveries:   &MongoDeliveries{coll: db.Collection(DeliveriesCollection)},
		State:        &MongoState{coll: db.Collection(StateCollection)},
	}
}

// EnsureIndexes creates the indexes the stores rely on, including the unique
// transaction_id index that makes initiation idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	txIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "pay_token", Value: 1}}},
		{Keys: bson.D{{Key: "partner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "account_move_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "settlement_state", Value: 1}, {Key: "updated_at", Value: 1}}},
	}
	if _, err := db.Collection(TransactionsCollection).Indexes().CreateMany(ctx, txIndexes); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	deliveryIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "received_at", Value: -1}}},
	}
	if _, err := db.Collection(DeliveriesCollection).Indexes().CreateMany(ctx, deliveryIndexes); err != nil {
		return fmt.Errorf("failed to create delivery indexes: %w", err)
	}
	return nil
}

type MongoTransactions struct {
	coll *mongo.Collection
}

func (s *MongoTransactions) Create(ctx context.Context, tx *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert transaction %s: %w", tx.TransactionID, err)
	}
	return nil
}

func (s *MongoTransactions) findOne(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var tx models.Transaction
	if err := s.coll.FindOne(ctx, filter).Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &tx, nil
}

func (s *MongoTransactions) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"transaction_id": transactionID})
}

func (s *MongoTransactions) GetByPayToken(ctx context.Context, payToken string) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"pay_token": payToken},
		bson.M{"qr_id": payToken},
	}})
}

func (s *MongoTransactions) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer cur.Close(ctx)

	txs := []models.Transaction{}
	if err := cur.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, nil
}

func (s *MongoTransactions) ListByPartner(ctx context.Context, partnerID models.ExternalID) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{"partner_id": partnerID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *MongoTransactions) ListByInvoice(ctx context.Context, invoiceID models.ExternalID) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{"account_move_id": invoiceID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func statusSet(u StatusUpdate, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range u.Fields {
		set[k] = v
	}
	set["status"] = u.Status
	set["updated_at"] = now
	if u.ProviderStatus != "" {
		set["provider_status"] = u.ProviderStatus
	}
	if u.StatusReason != "" {
		set["status_reason"] = u.StatusReason
	}
	if u.ProviderTxID != "" {
		set["provider_transaction_id"] = u.ProviderTxID
	}
	return set
}

// conditionalUpdate runs filter+update as one FindOneAndUpdate. When nothing
// matches it tells a missing transaction apart from a refused transition.
func (s *MongoTransactions) conditionalUpdate(ctx context.Context, transactionID string, filter, update bson.M) (*models.Transaction, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var tx models.Transaction
	err := s.coll.FindOneAndUpdate(opCtx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&tx)
	if err == nil {
		return &tx, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}

	current, err := s.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *MongoTransactions) ApplyStatus(ctx context.Context, transactionID string, u StatusUpdate) (*models.Transaction, bool, error) {
	if u.Status == models.StatusCompleted {
		return nil, false, fmt.Errorf("completed status must go through Complete")
	}
	filter := bson.M{
		"transaction_id": transactionID,
		"status":         bson.M{"$nin": terminalStatuses()},
	}
	return s.conditionalUpdate(ctx, transactionID, filter, bson.M{"$set": statusSet(u, time.Now().UTC())})
}

func (s *MongoTransactions) Complete(ctx context.Context, transactionID string, u StatusUpdate) (*models.Transaction, bool, error) {
	now := time.Now().UTC()
	u.Status = models.StatusCompleted
	completedAt := u.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}
	set := statusSet(u, now)
	set["completed_at"] = completedAt
	set["settlement_state"] = models.SettlementPending
	set["settlement_attempts"] = 0

	filter := bson.M{
		"transaction_id": transactionID,
		"status":         bson.M{"$nin": terminalStatuses()},
		"completed_at":   bson.M{"$exists": false},
	}
	return s.conditionalUpdate(ctx, transactionID, filter, bson.M{"$set": set})
}

func (s *MongoTransactions) ClaimSettlement(ctx context.Context, transactionID string, lease time.Duration) (*models.Transaction, bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"transaction_id":   transactionID,
		"status":           models.StatusCompleted,
		"settlement_state": bson.M{"$ne": models.SettlementSettled},
		"$or": bson.A{
			bson.M{"settlement_lease_until": nil},
			bson.M{"settlement_lease_until": bson.M{"$lte": now}},
		},
	}
	update := bson.M{"$set": bson.M{"settlement_lease_until": now.Add(lease)}}
	return s.conditionalUpdate(ctx, transactionID, filter, update)
}

func (s *MongoTransactions) UpdateFields(ctx context.Context, transactionID string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"transaction_id": transactionID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoTransactions) ListPendingSettlement(ctx context.Context, limit int) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.list(ctx, bson.M{
		"status":           models.StatusCompleted,
		"settlement_state": models.SettlementPending,
	}, opts)
}

func (s *MongoTransactions) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode transaction counts: %w", err)
	}
	out := map[models.Status]int64{}
	for _, r := range rows {
		out[models.Status(r.Status)] = r.Count
	}
	return out, nil
}

type MongoDeliveries struct {
	coll *mongo.Collection
}

func (s *MongoDeliveries) Seen(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up webhook delivery: %w", err)
	}
	return n > 0, nil
}

// Record stores a delivery. Recording the same key twice is not an error.
func (s *MongoDeliveries) Record(ctx context.Context, d models.WebhookDelivery) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, d); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return nil
}

type MongoState struct {
	coll *mongo.Collection
}

func (s *MongoState) GetState(ctx context.Context, id string) (*models.ProviderState, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var st models.ProviderState
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch provider state: %w", err)
	}
	return &st, nil
}

func (s *MongoState) LoadToken(ctx context.Context, id string) (string, time.Time, error) {
	st, err := s.GetState(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if st.AccessToken == "" || st.TokenExpiresAt == nil {
		return "", time.Time{}, ErrNotFound
	}
	return st.AccessToken, *st.TokenExpiresAt, nil
}

func (s *MongoState) upsert(ctx context.Context, id, clientID string, version int, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set["client_id"] = clientID
	set["version"] = version
	set["updated_at"] = time.Now().UTC()
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save provider state: %w", err)
	}
	return nil
}

func (s *MongoState) SaveToken(ctx context.Context, id, clientID string, version int, token string, expiresAt time.Time) error {
	return s.upsert(ctx, id, clientID, version, bson.M{"access_token": token, "token_expires_at": expiresAt.UTC()})
}

func (s *MongoState) SavePublicKey(ctx context.Context, id, clientID string, version int, key, keyID string) error {
	return s.upsert(ctx, id, clientID, version, bson.M{"public_key": key, "public_key_id": keyID})
}

func (s *MongoState) SaveWebhookStatus(ctx context.Context, id, clientID string, version int, status string) error {
	return s.upsert(ctx, id, clientID, version, bson.M{"last_webhook_status": status})
}
