package checkout

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	pkgerrors "github.com/dquispe/reparto-backend/pkg/errors"
)

// Metadata keys attached to every checkout session. The webhook side decodes
// the same blob to rebuild the order, so the two functions must stay inverses.
const (
	metadataKeyCustomerID = "customerId"
	metadataKeyProducts   = "products"
	metadataKeyOrderType  = "orderType"
	metadataKeyLatitude   = "latitude"
	metadataKeyLongitude  = "longitude"

	orderTypeProductPurchase = "product_purchase"
)

type metadataProduct struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// DecodedMetadata is the order payload recovered from a checkout session.
// Latitude and Longitude are nil when the checkout carried no coordinates.
type DecodedMetadata struct {
	CustomerID uuid.UUID
	Items      []CartItem
	Latitude   *float64
	Longitude  *float64
}

// EncodeMetadata flattens the order payload into the string map Stripe stores
// on the session. Absent coordinates become empty strings.
func EncodeMetadata(customerID uuid.UUID, items []CartItem, lat, lng *float64) (map[string]string, error) {
	products := make([]metadataProduct, 0, len(items))
	for _, item := range items {
		products = append(products, metadataProduct{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	encoded, err := json.Marshal(products)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode products metadata")
	}

	return map[string]string{
		metadataKeyCustomerID: customerID.String(),
		metadataKeyProducts:   string(encoded),
		metadataKeyOrderType:  orderTypeProductPurchase,
		metadataKeyLatitude:   formatCoordinate(lat),
		metadataKeyLongitude:  formatCoordinate(lng),
	}, nil
}

// DecodeMetadata is the exact inverse of EncodeMetadata.
func DecodeMetadata(metadata map[string]string) (*DecodedMetadata, error) {
	if metadata == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session metadata missing")
	}
	if metadata[metadataKeyOrderType] != orderTypeProductPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unexpected order type").
			WithDetails(map[string]any{"order_type": metadata[metadataKeyOrderType]})
	}

	customerID, err := uuid.Parse(metadata[metadataKeyCustomerID])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse customer id")
	}

	var products []metadataProduct
	if err := json.Unmarshal([]byte(metadata[metadataKeyProducts]), &products); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse products metadata")
	}
	if len(products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "products metadata empty")
	}

	lat, err := parseCoordinate(metadata[metadataKeyLatitude], "latitude")
	if err != nil {
		return nil, err
	}
	lng, err := parseCoordinate(metadata[metadataKeyLongitude], "longitude")
	if err != nil {
		return nil, err
	}

	items := make([]CartItem, 0, len(products))
	for _, product := range products {
		items = append(items, CartItem{ProductID: product.ProductID, Quantity: product.Quantity})
	}
	return &DecodedMetadata{
		CustomerID: customerID,
		Items:      items,
		Latitude:   lat,
		Longitude:  lng,
	}, nil
}

func formatCoordinate(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func parseCoordinate(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse "+field)
	}
	return &value, nil
}
