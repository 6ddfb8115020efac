package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"automarket/internal/catalog"
	"automarket/internal/moderation"
)

// ─── Region ──────────────────────────────────────────────────────────────────

// Region is where the car is offered.
type Region string

const (
	RegionCrimea         Region = "CRIMEA"
	RegionVinnytsia      Region = "VINNYTSIA"
	RegionVolyn          Region = "VOLYN"
	RegionDnipro         Region = "DNIPRO"
	RegionDonetsk        Region = "DONETSK"
	RegionIvanoFrankivsk Region = "IVANO-FRANKIVSK"
	RegionKherson        Region = "KHERSON"
	RegionKhmelnytskyi   Region = "KHMELNYTSKYI"
	RegionKyiv           Region = "KYIV"
	RegionKirovohrad     Region = "KIROVOHRAD"
	RegionLuhansk        Region = "LUHANSK"
	RegionLviv           Region = "LVIV"
	RegionMykolaiv       Region = "MYKOLAIV"
	RegionOdesa          Region = "ODESA"
	RegionPoltava        Region = "POLTAVA"
	RegionRivne          Region = "RIVNE"
	RegionSumy           Region = "SUMY"
	RegionTernopil       Region = "TERNOPIL"
	RegionKharkiv        Region = "KHARKIV"
	RegionZaporizhzhia   Region = "ZAPORIZHZHIA"
	RegionZhytomyr       Region = "ZHYTOMYR"
	RegionCherkasy       Region = "CHERKASY"
	RegionChernivtsi     Region = "CHERNIVTSI"
	RegionChernihiv      Region = "CHERNIHIV"
)

// DefaultRegion is used when a listing is created without one.
const DefaultRegion = RegionKyiv

// Regions lists every Region in display order.
var Regions = []Region{
	RegionCrimea, RegionVinnytsia, RegionVolyn, RegionDnipro, RegionDonetsk,
	RegionIvanoFrankivsk, RegionKherson, RegionKhmelnytskyi, RegionKyiv,
	RegionKirovohrad, RegionLuhansk, RegionLviv, RegionMykolaiv, RegionOdesa,
	RegionPoltava, RegionRivne, RegionSumy, RegionTernopil, RegionKharkiv,
	RegionZaporizhzhia, RegionZhytomyr, RegionCherkasy, RegionChernivtsi,
	RegionChernihiv,
}

// ParseRegion accepts any letter case. An empty string yields DefaultRegion.
func ParseRegion(s string) (Region, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultRegion, nil
	}
	for _, r := range Regions {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// ─── Listing ─────────────────────────────────────────────────────────────────

// Listing is a seller's posting tied to one car spec.
type Listing struct {
	ID           uuid.UUID           `json:"id"`
	CarSpecID    int64               `json:"car_spec_id"`
	BrandID      int64               `json:"brand_id"`
	ModelID      int64               `json:"model_id"`
	BodyType     catalog.BodyType    `json:"body_type"`
	SellerID     uuid.UUID           `json:"seller_id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Year         int                 `json:"year"`
	Engine       decimal.Decimal     `json:"engine"`
	Price        decimal.Decimal     `json:"price"`
	Currency     string              `json:"currency"`
	InitialRate  decimal.Decimal     `json:"initial_rate"`
	PriceUSD     decimal.NullDecimal `json:"price_usd"`
	PriceEUR     decimal.NullDecimal `json:"price_eur"`
	PriceUAH     decimal.NullDecimal `json:"price_uah"`
	Region       Region              `json:"region"`
	Status       moderation.State    `json:"status"`
	Active       bool                `json:"active"`
	EditAttempts int                 `json:"edit_attempts"`
	ViewsDay     int                 `json:"views_day"`
	ViewsWeek    int                 `json:"views_week"`
	ViewsMonth   int                 `json:"views_month"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// ─── Inputs ──────────────────────────────────────────────────────────────────

// CreateFields is what a seller submits for a new listing. BrandName is only
// used to word the catalog request when BrandID is unknown.
type CreateFields struct {
	BrandID     int64           `json:"brand_id"`
	BrandName   string          `json:"brand_name,omitempty"`
	ModelID     int64           `json:"model_id"`
	BodyType    string          `json:"body_type"`
	Year        int             `json:"year"`
	Engine      decimal.Decimal `json:"engine"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Region      string          `json:"region"`
}

// UpdateFields holds the editable fields; nil means unchanged.
type UpdateFields struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Year        *int             `json:"year"`
	Engine      *decimal.Decimal `json:"engine"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency"`
	Region      *string          `json:"region"`
}

// Filter narrows ListListings. Zero values are ignored.
type Filter struct {
	BrandID  *int64
	ModelID  *int64
	BodyType *catalog.BodyType
	Region   *Region
	MinYear  *int
	MaxYear  *int
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Active   *bool
	Limit    int
	Offset   int
}

// ─── Statistics ──────────────────────────────────────────────────────────────

// Period selects a view counter.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod converts a raw string to a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(s))
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
}

// Stats is the premium view of a listing's audience and market.
type Stats struct {
	TotalViews            int                 `json:"total_views"`
	ViewsDay              int                 `json:"views_day"`
	ViewsWeek             int                 `json:"views_week"`
	ViewsMonth            int                 `json:"views_month"`
	AveragePriceByRegion  decimal.NullDecimal `json:"average_price_by_region"`
	AveragePriceByCountry decimal.NullDecimal `json:"average_price_by_country"`
}
