package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// abandonedCartTTL is how long an untouched cart survives before Mongo drops it.
const abandonedCartTTL = 90 * 24 * time.Hour

type cartDocument struct {
	ID             string             `bson:"_id"`
	CustomerID     int64              `bson:"customer_id"`
	Items          []lineItemDocument `bson:"items"`
	AppliedRules   []int64            `bson:"applied_rules"`
	Gift           bool               `bson:"gift"`
	GiftMessage    string             `bson:"gift_message"`
	DeliveryOption string             `bson:"delivery_option"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

type lineItemDocument struct {
	ProductID         int64                `bson:"product_id"`
	VariantID         int64                `bson:"variant_id"`
	CustomizationID   int64                `bson:"customization_id"`
	DeliveryAddressID int64                `bson:"delivery_address_id"`
	Quantity          int                  `bson:"quantity"`
	UnitPrice         primitive.Decimal128 `bson:"unit_price"`
	AddedAt           time.Time            `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": cartID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDocument(doc)
}

func (m *mongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	doc, err := toDocument(cart)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	_, err = m.collection.ReplaceOne(ctx, bson.M{"_id": cart.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, cartID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": cartID})
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
			Keys: bson.D{{Key: "customer_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(abandonedCartTTL.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes creates the Mongo indexes when repo is Mongo backed.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}

func toDocument(cart *domain.Cart) (cartDocument, error) {
	doc := cartDocument{
		ID:             cart.ID,
		CustomerID:     cart.CustomerID,
		Items:          make([]lineItemDocument, 0, len(cart.Items)),
		AppliedRules:   cart.AppliedRules,
		Gift:           cart.Gift,
		GiftMessage:    cart.GiftMessage,
		DeliveryOption: cart.DeliveryOption,
		CreatedAt:      cart.CreatedAt,
		UpdatedAt:      cart.UpdatedAt,
	}
	if doc.AppliedRules == nil {
		doc.AppliedRules = []int64{}
	}

	for _, item := range cart.Items {
		price, err := primitive.ParseDecimal128(item.UnitPrice.String())
		if err != nil {
			return cartDocument{}, fmt.Errorf("failed to encode unit price: %w", err)
		}
		doc.Items = append(doc.Items, lineItemDocument{
			ProductID:         item.Key.ProductID,
			VariantID:         item.Key.VariantID,
			CustomizationID:   item.Key.CustomizationID,
			DeliveryAddressID: item.Key.DeliveryAddressID,
			Quantity:          item.Quantity,
			UnitPrice:         price,
			AddedAt:           item.AddedAt,
		})
	}
	return doc, nil
}

func fromDocument(doc cartDocument) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:             doc.ID,
		CustomerID:     doc.CustomerID,
		Items:          make([]domain.LineItem, 0, len(doc.Items)),
		AppliedRules:   doc.AppliedRules,
		Gift:           doc.Gift,
		GiftMessage:    doc.GiftMessage,
		DeliveryOption: doc.DeliveryOption,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}

	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("failed to decode unit price: %w", err)
		}
		cart.Items = append(cart.Items, domain.LineItem{
			Key: domain.IdentityKey{
				ProductID:         item.ProductID,
				VariantID:         item.VariantID,
				CustomizationID:   item.CustomizationID,
				DeliveryAddressID: item.DeliveryAddressID,
			},
			Quantity:  item.Quantity,
			UnitPrice: price,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}
