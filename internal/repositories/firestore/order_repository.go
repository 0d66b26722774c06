package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/polo-atelier/api/internal/domain"
	pfirestore "github.com/polo-atelier/api/internal/platform/firestore"
	"github.com/polo-atelier/api/internal/platform/pagination"
	"github.com/polo-atelier/api/internal/repositories"
)

const ordersCollection = "orders"

type orderCustomerDocument struct {
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Email     string `firestore:"email"`
	Phone     string `firestore:"phone"`
	Address   string `firestore:"address"`
	Note      string `firestore:"note,omitempty"`
}

type orderItemDocument struct {
	ProductID          string `firestore:"productId"`
	ProductName        string `firestore:"productName"`
	ProductDescription string `firestore:"productDescription,omitempty"`
	UnitPrice          int64  `firestore:"price"`
	Quantity           int    `firestore:"quantity"`
	Size               string `firestore:"size"`
	ImageURL           string `firestore:"imageUrl,omitempty"`
}

type orderPaymentDocument struct {
	BankName      string `firestore:"bankName"`
	AccountName   string `firestore:"accountName"`
	AccountNumber string `firestore:"accountNumber"`
	QRCodeImage   string `firestore:"qrCodeImage,omitempty"`
}

type orderSlipDocument struct {
	URL        string    `firestore:"url"`
	UploadedAt time.Time `firestore:"uploadedAt"`
}

type orderDocument struct {
	OrderNumber    string                `firestore:"orderNumber"`
	UserID         string                `firestore:"userId,omitempty"`
	CustomerInfo   orderCustomerDocument `firestore:"customerInfo"`
	Items          []orderItemDocument   `firestore:"items"`
	TotalAmount    int64                 `firestore:"totalAmount"`
	ShippingCost   int64                 `firestore:"shippingCost"`
	ShippingMethod string                `firestore:"shippingMethod"`
	Status         string                `firestore:"status"`
	PaymentInfo    orderPaymentDocument  `firestore:"paymentInfo"`
	PaymentSlip    *orderSlipDocument    `firestore:"paymentSlip,omitempty"`
	OrderDate      time.Time             `firestore:"orderDate"`
	CreatedAt      time.Time             `firestore:"createdAt"`
	UpdatedAt      time.Time             `firestore:"updatedAt"`
	SearchTokens   []string              `firestore:"searchTokens"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{
		provider: provider,
		orders:   base,
	}, nil
}

// Insert stores a new order document under the aggregate's ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update rewrites the order document wholesale.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, orderToDocument(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches a single order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// List queries orders matching the filter, newest first, with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.DefaultMaxPageSize {
		pageSize = pagination.DefaultMaxPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", string(filter.Status[0]))
		} else if len(filter.Status) > 1 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if token := searchToken(filter.Search); token != "" {
			q = q.Where("searchTokens", "array-contains", token)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", *filter.DateRange.From)
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", *filter.DateRange.To)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[i-1]
			token, err := pagination.EncodeToken(pagination.Cursor{
				StartAfter: []any{last.Data.CreatedAt, last.ID},
			})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: %w", err)
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, orderFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func orderToDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			UnitPrice:          item.UnitPrice,
			Quantity:           item.Quantity,
			Size:               item.Size,
			ImageURL:           item.ImageURL,
		})
	}

	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		CustomerInfo: orderCustomerDocument{
			FirstName: order.CustomerInfo.FirstName,
			LastName:  order.CustomerInfo.LastName,
			Email:     order.CustomerInfo.Email,
			Phone:     order.CustomerInfo.Phone,
			Address:   order.CustomerInfo.Address,
			Note:      order.CustomerInfo.Note,
		},
		Items:          items,
		TotalAmount:    order.TotalAmount,
		ShippingCost:   order.ShippingCost,
		ShippingMethod: string(order.ShippingMethod),
		Status:         string(order.Status),
		PaymentInfo: orderPaymentDocument{
			BankName:      order.PaymentInfo.BankName,
			AccountName:   order.PaymentInfo.AccountName,
			AccountNumber: order.PaymentInfo.AccountNumber,
			QRCodeImage:   order.PaymentInfo.QRCodeImage,
		},
		OrderDate:    order.OrderDate,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
		SearchTokens: orderSearchTokens(order),
	}
	if order.PaymentSlip != nil {
		doc.PaymentSlip = &orderSlipDocument{
			URL:        order.PaymentSlip.URL,
			UploadedAt: order.PaymentSlip.UploadedAt,
		}
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			UnitPrice:          item.UnitPrice,
			Quantity:           item.Quantity,
			Size:               item.Size,
			ImageURL:           item.ImageURL,
		})
	}

	order := domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		UserID:      doc.UserID,
		CustomerInfo: domain.CustomerInfo{
			FirstName: doc.CustomerInfo.FirstName,
			LastName:  doc.CustomerInfo.LastName,
			Email:     doc.CustomerInfo.Email,
			Phone:     doc.CustomerInfo.Phone,
			Address:   doc.CustomerInfo.Address,
			Note:      doc.CustomerInfo.Note,
		},
		Items:          items,
		TotalAmount:    doc.TotalAmount,
		ShippingCost:   doc.ShippingCost,
		ShippingMethod: domain.ShippingMethod(doc.ShippingMethod),
		Status:         domain.OrderStatus(doc.Status),
		PaymentInfo: domain.PaymentSnapshot{
			BankName:      doc.PaymentInfo.BankName,
			AccountName:   doc.PaymentInfo.AccountName,
			AccountNumber: doc.PaymentInfo.AccountNumber,
			QRCodeImage:   doc.PaymentInfo.QRCodeImage,
		},
		OrderDate: doc.OrderDate,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.PaymentSlip != nil {
		order.PaymentSlip = &domain.PaymentSlip{
			URL:        doc.PaymentSlip.URL,
			UploadedAt: doc.PaymentSlip.UploadedAt,
		}
	}
	return order
}

// orderSearchTokens builds the lowercase keyword index the admin search
// queries with array-contains.
func orderSearchTokens(order domain.Order) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(value string) {
		for _, field := range strings.Fields(strings.ToLower(value)) {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			tokens = append(tokens, field)
		}
	}
	add(order.OrderNumber)
	add(order.CustomerInfo.FirstName)
	add(order.CustomerInfo.LastName)
	add(order.CustomerInfo.Email)
	add(order.CustomerInfo.Phone)
	return tokens
}

func searchToken(search string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(search)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
