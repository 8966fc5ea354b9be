package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/fleetyard/internal/models"
	"github.com/zulandar/fleetyard/internal/registry"
	"gonum.org/v1/gonum/stat"
)

// Page bounds for History.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// CycleView is a charge cycle with display names resolved.
type CycleView struct {
	ID                uint               `json:"id"`
	VehicleID         uint               `json:"vehicle_id"`
	VehicleCode       string             `json:"vehicle_code"`
	OperatorID        uint               `json:"operator_id"`
	OperatorName      string             `json:"operator_name"`
	Status            models.CycleStatus `json:"status"`
	PickupTime        time.Time          `json:"pickup_time"`
	PickupBatteryPct  int                `json:"pickup_battery_pct"`
	EarlyPickup       bool               `json:"early_pickup"`
	EarlyPickupReason *string            `json:"early_pickup_reason,omitempty"`
	ReturnTime        *time.Time         `json:"return_time,omitempty"`
	ReturnOperatorID  *uint              `json:"return_operator_id,omitempty"`
	ReturnBatteryPct  *int               `json:"return_battery_pct,omitempty"`
	ReturnType        *models.ReturnType `json:"return_type,omitempty"`
	ReturnLocationID  *uint              `json:"return_location_id,omitempty"`
	ForgotReturn      bool               `json:"forgot_return"`
	ForcedReturnBy    *uint              `json:"forced_return_by,omitempty"`
}

// NewCycleView copies c into a view with the given display names.
func NewCycleView(c *models.ChargeCycle, vehicleCode, operatorName string) CycleView {
	return CycleView{
		ID:                c.ID,
		VehicleID:         c.VehicleID,
		VehicleCode:       vehicleCode,
		OperatorID:        c.OperatorID,
		OperatorName:      operatorName,
		Status:            c.Status,
		PickupTime:        c.PickupTime,
		PickupBatteryPct:  c.PickupBatteryPct,
		EarlyPickup:       c.EarlyPickup,
		EarlyPickupReason: c.EarlyPickupReason,
		ReturnTime:        c.ReturnTime,
		ReturnOperatorID:  c.ReturnOperatorID,
		ReturnBatteryPct:  c.ReturnBatteryPct,
		ReturnType:        c.ReturnType,
		ReturnLocationID:  c.ReturnLocationID,
		ForgotReturn:      c.ForgotReturn,
		ForcedReturnBy:    c.ForcedReturnBy,
	}
}

// Views resolves vehicle codes and operator names for cycles in one pass.
func (s *Service) Views(ctx context.Context, cycles []models.ChargeCycle) ([]CycleView, error) {
	db := s.db.WithContext(ctx)

	vehicleIDs := make([]uint, 0, len(cycles))
	operatorIDs := make([]uint, 0, len(cycles))
	for _, c := range cycles {
		vehicleIDs = append(vehicleIDs, c.VehicleID)
		operatorIDs = append(operatorIDs, c.OperatorID)
	}
	var vehicles []models.Vehicle
	codes := make(map[uint]string)
	if len(vehicleIDs) > 0 {
		if err := db.Where("id IN ?", vehicleIDs).Find(&vehicles).Error; err != nil {
			return nil, fmt.Errorf("analytics: vehicle codes: %w", err)
		}
	}
	for _, v := range vehicles {
		codes[v.ID] = v.Code
	}
	names, err := registry.OperatorNames(db, operatorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]CycleView, len(cycles))
	for i := range cycles {
		views[i] = NewCycleView(&cycles[i], codes[cycles[i].VehicleID], names[cycles[i].OperatorID])
	}
	return views, nil
}

// HistoryQuery selects one page of cycles.
type HistoryQuery struct {
	Window Window
	Filter Filter
	Page   int // 1-based; zero means 1
	Limit  int // zero means DefaultLimit; capped at MaxLimit
}

// HistoryPage is one page of cycles, newest first.
type HistoryPage struct {
	Cycles []CycleView `json:"cycles"`
	Total  int64       `json:"total"`
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
	Days   int         `json:"days"`
}

func (q HistoryQuery) bounds() (page, limit int) {
	page, limit = q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// History returns a page of cycles picked up in the window that match the
// filter, ordered by pickup time descending.
func (s *Service) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	days, _, since := s.bounds(q.Window)
	page, limit := q.bounds()

	base := q.Filter.apply(s.db.WithContext(ctx).Model(&models.ChargeCycle{}).Where("pickup_time >= ?", since))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("analytics: count history: %w", err)
	}

	var cycles []models.ChargeCycle
	if err := q.Filter.apply(s.db.WithContext(ctx).Where("pickup_time >= ?", since)).
		Order("pickup_time DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("analytics: load history: %w", err)
	}

	views, err := s.Views(ctx, cycles)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Cycles: views, Total: total, Page: page, Limit: limit, Days: days}, nil
}

// VehicleHistory is one vehicle's cycles in the window.
type VehicleHistory struct {
	VehicleID        uint        `json:"vehicle_id"`
	Code             string      `json:"code"`
	Days             int         `json:"days"`
	Count            int         `json:"count"`
	MeanUsageMinutes float64     `json:"mean_usage_minutes"`
	Cycles           []CycleView `json:"cycles"`
}

// VehicleHistory lists the vehicle's cycles, newest first, with the mean
// time between pickup and return over the returned ones.
func (s *Service) VehicleHistory(ctx context.Context, vehicleID uint, w Window) (*VehicleHistory, error) {
	v, err := registry.GetVehicle(s.db.WithContext(ctx), vehicleID)
	if err != nil {
		return nil, err
	}
	days, _, since := s.bounds(w)
	cycles, err := s.windowCycles(ctx, since, Filter{VehicleID: vehicleID})
	if err != nil {
		return nil, err
	}

	var usage []float64
	for i := range cycles {
		if d, ok := cycles[i].UsageDuration(); ok {
			usage = append(usage, d.Minutes())
		}
	}
	// Newest first.
	for i, j := 0, len(cycles)-1; i < j; i, j = i+1, j-1 {
		cycles[i], cycles[j] = cycles[j], cycles[i]
	}
	views, err := s.Views(ctx, cycles)
	if err != nil {
		return nil, err
	}

	h := &VehicleHistory{VehicleID: v.ID, Code: v.Code, Days: days, Count: len(cycles), Cycles: views}
	if len(usage) > 0 {
		h.MeanUsageMinutes = decimal.NewFromFloat(stat.Mean(usage, nil)).Round(1).InexactFloat64()
	}
	return h, nil
}
