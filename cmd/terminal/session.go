package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"syntra-pos/internal/cart"
	"syntra-pos/internal/database/models"
)

var paymentMethods = []string{"Card", "Cash", "QR"}

// Backend is what a till needs from the gateway.
type Backend interface {
	cart.Submitter
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetSettings(ctx context.Context) (models.Settings, error)
}

type session struct {
	backend  Backend
	cart     *cart.Cart
	products []models.Product
	settings models.Settings
	timeout  time.Duration
	out      io.Writer
	logger   *zap.Logger
}

func newSession(backend Backend, out io.Writer, timeout time.Duration, logger *zap.Logger) *session {
	return &session{
		backend: backend,
		cart:    cart.New(),
		timeout: timeout,
		out:     out,
		logger:  logger,
	}
}

func (s *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// refresh reloads products and settings and reconciles the cart with the
// new stock levels.
func (s *session) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	settings, err := s.backend.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.products = products
	s.settings = settings
	for _, id := range s.cart.RefreshStock(products) {
		s.printf("stock changed for %s, cart adjusted\n", s.nameOf(id))
	}
	return nil
}

func (s *session) nameOf(id string) string {
	for _, p := range s.products {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

// product resolves a 1-based list number or a product id.
func (s *session) product(ref string) (models.Product, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(s.products) {
			return models.Product{}, fmt.Errorf("no product #%d", n)
		}
		return s.products[n-1], nil
	}
	for _, p := range s.products {
		if p.ID == ref {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("unknown product %q", ref)
}

func (s *session) amount(d decimal.Decimal) string {
	return s.settings.Currency + " " + d.StringFixed(2)
}

func (s *session) list() {
	if len(s.products) == 0 {
		s.printf("no products\n")
		return
	}
	for i, p := range s.products {
		s.printf("%3d  %-24s %10s  stock %d\n", i+1, p.Name, s.amount(p.Price), p.Stock)
	}
}

func (s *session) show() {
	if s.cart.IsEmpty() {
		s.printf("cart is empty\n")
		return
	}
	for _, e := range s.cart.Items() {
		line := e.Product.Price.Mul(decimal.NewFromInt32(e.Quantity))
		s.printf("  %-24s x%-3d %s\n", e.Product.Name, e.Quantity, s.amount(line))
	}
	totals := s.cart.Totals(s.settings)
	s.printf("  subtotal %s\n", s.amount(totals.Subtotal))
	s.printf("  tax (%s%%) %s\n", s.settings.TaxRate.Shift(2).String(), s.amount(totals.Tax))
	s.printf("  total %s\n", s.amount(totals.Total))
}

func (s *session) pay(ctx context.Context, method string) {
	if !validPaymentMethod(method) {
		s.printf("payment method must be one of %s\n", strings.Join(paymentMethods, ", "))
		return
	}

	total := s.cart.Total(s.settings)
	checkoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	saleID, err := s.cart.Checkout(checkoutCtx, s.backend, method)
	cancel()

	var rejected *cart.RejectedError
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		s.printf("cart is empty\n")
		return
	case errors.As(err, &rejected):
		s.printf("sale rejected: %s\n", rejected.Reason)
	case err != nil:
		s.logger.Error("checkout failed", zap.Error(err))
		s.printf("checkout failed, cart kept: %v\n", err)
		return
	default:
		s.printf("sale %s completed: %s paid by %s\n", saleID, s.amount(total), method)
	}

	// Checkout left the cart as it was. The refresh after it may still clamp
	// lines to stock sold elsewhere, and each clamped line is printed, so the
	// next pay is not rejected for the same reason.
	if err := s.refresh(ctx); err != nil {
		s.printf("refresh failed: %v\n", err)
	}
}

func validPaymentMethod(method string) bool {
	for _, m := range paymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

const helpText = `commands:
  list               show products
  add <n|id>         add one unit
  inc <n|id>         increase quantity by one
  dec <n|id>         decrease quantity by one
  remove <n|id>      remove a line
  clear              empty the cart
  cart               show cart and totals
  pay <method>       check out with Card, Cash or QR
  refresh            reload products and settings
  help               show this text
  quit               leave
`

// handle runs one command line and reports whether the session should end.
func (s *session) handle(ctx context.Context, line string, defaultMethod string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	withProduct := func(fn func(models.Product) error) {
		if len(args) != 1 {
			s.printf("usage: %s <n|id>\n", cmd)
			return
		}
		p, err := s.product(args[0])
		if err != nil {
			s.printf("%v\n", err)
			return
		}
		if err := fn(p); err != nil {
			s.printf("%s: %v\n", p.Name, err)
			return
		}
		s.show()
	}

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.printf("%s", helpText)
	case "list":
		s.list()
	case "add":
		withProduct(s.cart.Add)
	case "inc":
		withProduct(func(p models.Product) error { return s.cart.Adjust(p.ID, 1) })
	case "dec":
		withProduct(func(p models.Product) error { return s.cart.Adjust(p.ID, -1) })
	case "remove":
		withProduct(func(p models.Product) error { return s.cart.Remove(p.ID) })
	case "clear":
		s.cart.Clear()
		s.printf("cart cleared\n")
	case "cart", "total":
		s.show()
	case "pay":
		method := defaultMethod
		if len(args) > 0 {
			method = args[0]
		}
		s.pay(ctx, method)
	case "refresh":
		if err := s.refresh(ctx); err != nil {
			s.printf("refresh failed: %v\n", err)
			return false
		}
		s.list()
	default:
		s.printf("unknown command %q, try help\n", cmd)
	}
	return false
}

func (s *session) run(ctx context.Context, in io.Reader, defaultMethod string) error {
	scanner := bufio.NewScanner(in)
	s.printf("> ")
	for scanner.Scan() {
		if s.handle(ctx, scanner.Text(), defaultMethod) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.printf("> ")
	}
	return scanner.Err()
}
