package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/velomart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

// cartDoc is the persisted shape of a cart. Money travels as decimal strings
// so BSON round-trips never lose precision.
type cartDoc struct {
	SessionID     string     `bson:"session_id"`
	Lines         []lineDoc  `bson:"lines"`
	Coupon        *couponDoc `bson:"coupon,omitempty"`
	TotalQuantity int        `bson:"total_quantity"`
	TotalPrice    string     `bson:"total_price"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

type lineDoc struct {
	CartKey            string            `bson:"cart_key"`
	ProductID          int64             `bson:"product_id"`
	VariationID        int64             `bson:"variation_id,omitempty"`
	SelectedAttributes map[string]string `bson:"selected_attributes,omitempty"`
	Quantity           int               `bson:"quantity"`
	UnitPrice          string            `bson:"unit_price"`
	LineTotal          string            `bson:"line_total"`
	Currency           string            `bson:"currency"`
	CategoryIDs        []int64           `bson:"category_ids,omitempty"`
	OnSale             bool              `bson:"on_sale,omitempty"`
}

type couponDoc struct {
	Code                string  `bson:"code"`
	DiscountType        string  `bson:"discount_type"`
	DiscountValue       string  `bson:"discount_value"`
	AllowedCategoryIDs  []int64 `bson:"allowed_category_ids,omitempty"`
	ExcludedCategoryIDs []int64 `bson:"excluded_category_ids,omitempty"`
}

func (m mongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"session_id": sessionID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDoc(&doc)
}

func (m mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()

	// Set timestamps
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"session_id": cart.SessionID}
	update := bson.M{"$set": toDoc(cart)}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, sessionID string) error {
	filter := bson.M{"session_id": sessionID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func toDoc(cart *domain.Cart) *cartDoc {
	doc := &cartDoc{
		SessionID:     cart.SessionID,
		Lines:         make([]lineDoc, len(cart.Lines)),
		TotalQuantity: cart.TotalQuantity,
		TotalPrice:    cart.TotalPrice.String(),
		CreatedAt:     cart.CreatedAt,
		UpdatedAt:     cart.UpdatedAt,
	}
	for i, line := range cart.Lines {
		doc.Lines[i] = lineDoc{
			CartKey:            line.CartKey,
			ProductID:          line.ProductID,
			VariationID:        line.VariationID,
			SelectedAttributes: line.SelectedAttributes,
			Quantity:           line.Quantity,
			UnitPrice:          line.UnitPrice.String(),
			LineTotal:          line.LineTotal.String(),
			Currency:           line.Currency,
			CategoryIDs:        line.CategoryIDs,
			OnSale:             line.OnSale,
		}
	}
	if cart.Coupon != nil {
		doc.Coupon = &couponDoc{
			Code:                cart.Coupon.Code,
			DiscountType:        string(cart.Coupon.DiscountType),
			DiscountValue:       cart.Coupon.DiscountValue.String(),
			AllowedCategoryIDs:  cart.Coupon.AllowedCategoryIDs,
			ExcludedCategoryIDs: cart.Coupon.ExcludedCategoryIDs,
		}
	}
	return doc
}

func fromDoc(doc *cartDoc) (*domain.Cart, error) {
	totalPrice, err := decimal.NewFromString(doc.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored total price: %w", err)
	}

	cart := &domain.Cart{
		SessionID:     doc.SessionID,
		Lines:         make([]domain.CartLine, len(doc.Lines)),
		TotalQuantity: doc.TotalQuantity,
		TotalPrice:    totalPrice,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for i, line := range doc.Lines {
		unitPrice, errPrice := decimal.NewFromString(line.UnitPrice)
		if errPrice != nil {
			return nil, fmt.Errorf("failed to parse stored unit price: %w", errPrice)
		}
		lineTotal, errTotal := decimal.NewFromString(line.LineTotal)
		if errTotal != nil {
			return nil, fmt.Errorf("failed to parse stored line total: %w", errTotal)
		}
		cart.Lines[i] = domain.CartLine{
			CartKey:            line.CartKey,
			ProductID:          line.ProductID,
			VariationID:        line.VariationID,
			SelectedAttributes: line.SelectedAttributes,
			Quantity:           line.Quantity,
			UnitPrice:          unitPrice,
			LineTotal:          lineTotal,
			Currency:           line.Currency,
			CategoryIDs:        line.CategoryIDs,
			OnSale:             line.OnSale,
		}
	}
	if doc.Coupon != nil {
		value, errValue := decimal.NewFromString(doc.Coupon.DiscountValue)
		if errValue != nil {
			return nil, fmt.Errorf("failed to parse stored discount value: %w", errValue)
		}
		cart.Coupon = &domain.Coupon{
			Code:                doc.Coupon.Code,
			DiscountType:        domain.DiscountType(doc.Coupon.DiscountType),
			DiscountValue:       value,
			AllowedCategoryIDs:  doc.Coupon.AllowedCategoryIDs,
			ExcludedCategoryIDs: doc.Coupon.ExcludedCategoryIDs,
		}
	}
	return cart, nil
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}
