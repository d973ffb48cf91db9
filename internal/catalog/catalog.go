// Package catalog holds the editable shop content the bot presents: the main
// menu and its sub-options, current offers, menu pictures and message copy.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
	"github.com/google/uuid"
)

// Document keys.
const (
	KeyOptions    = "options"
	KeyOffers     = "offers"
	KeyMenuImages = "menu_images"
)

var (
	// ErrOfferNotFound is returned when no offer has the id
	ErrOfferNotFound = errors.New("offer not found")

	// ErrInvalidOption is returned for a menu document that cannot drive the bot
	ErrInvalidOption = errors.New("invalid menu option")
)

// Action is what selecting a main-menu option does.
type Action string

const (
	ActionShowMenu Action = "show_menu"
	ActionOrder    Action = "order"
	ActionTrack    Action = "track"
	ActionOffers   Action = "offers"
	ActionSupport  Action = "support"
	ActionReply    Action = "reply"
	ActionSubMenu  Action = "submenu"
)

// Option is one numbered choice.
type Option struct {
	ID         string   `json:"id"`
	Label      Text     `json:"label"`
	Action     Action   `json:"action,omitempty"`
	Response   Text     `json:"response,omitempty"`
	SubOptions []Option `json:"subOptions,omitempty"`
}

// Options is the menu document.
type Options struct {
	ShopName string   `json:"shopName,omitempty"`
	MainMenu []Option `json:"mainMenu"`
}

// Find returns the main-menu option with id.
func (o Options) Find(id string) (Option, bool) {
	return findOption(o.MainMenu, id)
}

// FindSub returns sub-option subID of option parentID.
func (o Options) FindSub(parentID, subID string) (Option, bool) {
	parent, ok := o.Find(parentID)
	if !ok {
		return Option{}, false
	}
	return findOption(parent.SubOptions, subID)
}

// Validate checks ids are present and unique within each level.
func (o Options) Validate() error {
	if len(o.MainMenu) == 0 {
		return fmt.Errorf("%w: main menu is empty", ErrInvalidOption)
	}
	return validateLevel(o.MainMenu, "main menu")
}

func validateLevel(list []Option, where string) error {
	seen := make(map[string]struct{}, len(list))
	for _, opt := range list {
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			return fmt.Errorf("%w: %s has an option without id", ErrInvalidOption, where)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s repeats id %s", ErrInvalidOption, where, id)
		}
		seen[id] = struct{}{}
		if len(opt.SubOptions) > 0 {
			if err := validateLevel(opt.SubOptions, "option "+id); err != nil {
				return err
			}
		}
	}
	return nil
}

func findOption(list []Option, id string) (Option, bool) {
	for _, opt := range list {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// RenderList formats options as "id. label" lines.
func RenderList(list []Option, lang string) string {
	var b strings.Builder
	for i, opt := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(opt.ID)
		b.WriteString(". ")
		b.WriteString(opt.Label.In(lang))
	}
	return b.String()
}

// Offer is a time-limited promotion.
type Offer struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       string     `json:"price,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Active reports whether the offer is still valid at now.
func (o Offer) Active(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// MenuImage is a picture of the printed menu.
type MenuImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// DefaultOptions is served whenever the options document is missing or
// unreadable.
func DefaultOptions() Options {
	return Options{
		ShopName: "Coffee",
		MainMenu: []Option{
			{ID: "1", Action: ActionOrder, Label: Text{LangArabic: "🛒 طلب جديد", LangEnglish: "🛒 New order"}},
			{ID: "2", Action: ActionTrack, Label: Text{LangArabic: "📦 تتبع طلب", LangEnglish: "📦 Track an order"}},
			{ID: "3", Action: ActionShowMenu, Label: Text{LangArabic: "📋 المنيو", LangEnglish: "📋 Menu"}},
			{ID: "4", Action: ActionOffers, Label: Text{LangArabic: "🔥 العروض", LangEnglish: "🔥 Offers"}},
			{ID: "5", Action: ActionSupport, Label: Text{LangArabic: "👨‍💼 خدمة العملاء", LangEnglish: "👨‍💼 Customer service"}},
		},
	}
}

// Service reads and edits catalog documents. Reads degrade to defaults and
// empty lists when the store is unavailable.
type Service struct {
	mu     sync.Mutex
	store  docstore.Store
	clock  clock.Clock
	logger *logging.Logger
}

// NewService returns a catalog Service over store.
func NewService(store docstore.Store, c clock.Clock, logger *logging.Logger) *Service {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, clock: c, logger: logger}
}

// Options returns the menu document, or DefaultOptions when it is missing,
// unreadable or invalid.
func (s *Service) Options(ctx context.Context) Options {
	var opts Options
	found, err := docstore.ReadJSON(ctx, s.store, KeyOptions, &opts)
	if err != nil {
		s.logger.Warn("catalog options unavailable, using defaults", "error", err)
		return DefaultOptions()
	}
	if !found {
		return DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		s.logger.Warn("catalog options invalid, using defaults", "error", err)
		return DefaultOptions()
	}
	return opts
}

// SaveOptions validates and stores the menu document.
func (s *Service) SaveOptions(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return docstore.WriteJSON(ctx, s.store, KeyOptions, opts)
}

// Offers returns all stored offers, expired ones included.
func (s *Service) Offers(ctx context.Context) ([]Offer, error) {
	var offers []Offer
	if _, err := docstore.ReadJSON(ctx, s.store, KeyOffers, &offers); err != nil {
		return []Offer{}, err
	}
	if offers == nil {
		offers = []Offer{}
	}
	return offers, nil
}

// ActiveOffers returns offers that have not expired. Read failures are logged
// and yield an empty list.
func (s *Service) ActiveOffers(ctx context.Context) []Offer {
	all, err := s.Offers(ctx)
	if err != nil {
		s.logger.Warn("offers unavailable", "error", err)
		return nil
	}
	now := s.clock.Now()
	var out []Offer
	for _, o := range all {
		if o.Active(now) {
			out = append(out, o)
		}
	}
	return out
}

// SaveOffer inserts or replaces an offer. An empty id gets a new one.
func (s *Service) SaveOffer(ctx context.Context, offer Offer) (Offer, error) {
	if strings.TrimSpace(offer.Title) == "" {
		return Offer{}, fmt.Errorf("%w: offer title is required", ErrInvalidOption)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	offers, err := s.Offers(ctx)
	if err != nil {
		return Offer{}, err
	}
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	replaced := false
	for i := range offers {
		if offers[i].ID == offer.ID {
			offers[i] = offer
			replaced = true
			break
		}
	}
	if !replaced {
		offers = append(offers, offer)
	}
	if err := docstore.WriteJSON(ctx, s.store, KeyOffers, offers); err != nil {
		return Offer{}, err
	}
	return offer, nil
}

// DeleteOffer removes an offer by id.
func (s *Service) DeleteOffer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offers, err := s.Offers(ctx)
	if err != nil {
		return err
	}
	for i := range offers {
		if offers[i].ID == id {
			offers = append(offers[:i], offers[i+1:]...)
			return docstore.WriteJSON(ctx, s.store, KeyOffers, offers)
		}
	}
	return fmt.Errorf("%w: %s", ErrOfferNotFound, id)
}

// PruneExpiredOffers drops offers past their expiry and reports how many went.
func (s *Service) PruneExpiredOffers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offers, err := s.Offers(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	kept := offers[:0]
	for _, o := range offers {
		if o.Active(now) {
			kept = append(kept, o)
		}
	}
	removed := len(offers) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, docstore.WriteJSON(ctx, s.store, KeyOffers, kept)
}

// MenuImages returns the stored menu pictures. Read failures are logged and
// yield an empty list.
func (s *Service) MenuImages(ctx context.Context) []MenuImage {
	var images []MenuImage
	if _, err := docstore.ReadJSON(ctx, s.store, KeyMenuImages, &images); err != nil {
		s.logger.Warn("menu images unavailable", "error", err)
		return nil
	}
	return images
}

// SetMenuImages replaces the menu pictures.
func (s *Service) SetMenuImages(ctx context.Context, images []MenuImage) error {
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			return fmt.Errorf("%w: menu image url is required", ErrInvalidOption)
		}
	}
	if images == nil {
		images = []MenuImage{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return docstore.WriteJSON(ctx, s.store, KeyMenuImages, images)
}

// RenderOffers formats the active offers for a chat message.
func RenderOffers(offers []Offer) string {
	sorted := append([]Offer(nil), offers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Title < sorted[j].Title })
	var b strings.Builder
	for i, o := range sorted {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("• ")
		b.WriteString(o.Title)
		if o.Price != "" {
			b.WriteString(" (")
			b.WriteString(o.Price)
			b.WriteString(")")
		}
		if o.Description != "" {
			b.WriteString("\n")
			b.WriteString(o.Description)
		}
	}
	return b.String()
}
