package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/config"
	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/fees"
	"github.com/tradingfloor/exchange-core/internal/matching"
	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/phase"
	"github.com/tradingfloor/exchange-core/internal/position"
	"github.com/tradingfloor/exchange-core/internal/venue"
)

// buildVenue turns config.Config into a wired venue.Exchange: it resolves
// the pricing strategy, the per-role constraint lists and fee schedules,
// and the trading-day schedule.
func buildVenue(cfg *config.Config, logger *zap.Logger) (*venue.Exchange, error) {
	schedule, err := buildSchedule(cfg.Phases.Schedule)
	if err != nil {
		return nil, err
	}

	strategy, err := buildStrategy(cfg.Matching)
	if err != nil {
		return nil, err
	}

	svc := position.NewService()
	rates := venue.NewRateTracker()

	byRole, err := buildConstraints(cfg.Roles)
	if err != nil {
		return nil, err
	}
	validator := constraints.NewValidator(byRole, svc, rates)

	feeSchedules, err := buildFeeSchedules(cfg.Fees)
	if err != nil {
		return nil, err
	}

	venueCfg := venue.Config{
		AllowSelfTrade: cfg.Exchange.AllowSelfTrade,
		Schedule:       schedule,
	}
	return venue.New(venueCfg, strategy, validator, feeSchedules, svc, rates, logger), nil
}

func buildSchedule(entries []config.PhaseIntervalConfig) ([]phase.Interval, error) {
	if len(entries) == 0 {
		return phase.DefaultSchedule(), nil
	}
	out := make([]phase.Interval, 0, len(entries))
	for _, e := range entries {
		start, err := parseClock(e.Start)
		if err != nil {
			return nil, fmt.Errorf("phases.schedule: %w", err)
		}
		end, err := parseClock(e.End)
		if err != nil {
			return nil, fmt.Errorf("phases.schedule: %w", err)
		}
		ph, err := parsePhase(e.Phase)
		if err != nil {
			return nil, err
		}
		out = append(out, phase.Interval{Start: start, End: end, Phase: ph})
	}
	phase.SortSchedule(out)
	return out, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parsePhase(s string) (phase.State, error) {
	switch s {
	case "closed":
		return phase.Closed, nil
	case "pre_open":
		return phase.PreOpen, nil
	case "opening_auction":
		return phase.OpeningAuction, nil
	case "continuous":
		return phase.Continuous, nil
	default:
		return 0, fmt.Errorf("phases.schedule: unknown phase %q", s)
	}
}

func buildStrategy(cfg config.MatchingConfig) (matching.PricingStrategy, error) {
	if cfg.Mode != "batch" {
		return matching.MaximumVolumeStrategy{}, nil
	}
	switch cfg.BatchPricingStrategy {
	case "equilibrium":
		return matching.EquilibriumStrategy{}, nil
	case "maximum_volume", "":
		return matching.MaximumVolumeStrategy{}, nil
	default:
		return nil, fmt.Errorf("matching.batch_pricing_strategy: unknown strategy %q", cfg.BatchPricingStrategy)
	}
}

func buildConstraints(roles map[string]config.RoleConfig) (map[constraints.Role][]constraints.Constraint, error) {
	out := make(map[constraints.Role][]constraints.Constraint, len(roles))
	for name, roleCfg := range roles {
		role, err := constraints.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("roles: %w", err)
		}
		list := make([]constraints.Constraint, 0, len(roleCfg.Constraints))
		for _, cc := range roleCfg.Constraints {
			c, err := buildConstraint(cc)
			if err != nil {
				return nil, fmt.Errorf("roles.%s: %w", name, err)
			}
			list = append(list, c)
		}
		out[role] = list
	}
	return out, nil
}

func buildConstraint(cc config.ConstraintConfig) (constraints.Constraint, error) {
	switch cc.Kind {
	case "position_limit":
		return constraints.Constraint{Kind: constraints.KindPositionLimit, MaxAbsolutePosition: cc.MaxAbsolutePosition, Symmetric: cc.Symmetric}, nil
	case "portfolio_limit":
		return constraints.Constraint{Kind: constraints.KindPortfolioLimit, MaxAbsolutePosition: cc.MaxPortfolioAbsolute}, nil
	case "order_size":
		return constraints.Constraint{Kind: constraints.KindOrderSize, MinOrderQuantity: cc.MinOrderQuantity, MaxOrderQuantity: cc.MaxOrderQuantity}, nil
	case "order_rate":
		return constraints.Constraint{Kind: constraints.KindOrderRate, MaxOrdersPerSecond: cc.MaxOrdersPerSecond}, nil
	case "allowed_order_types":
		types := make([]orders.OrderType, 0, len(cc.AllowedOrderTypes))
		for _, t := range cc.AllowedOrderTypes {
			ot, err := orders.ParseOrderType(t)
			if err != nil {
				return constraints.Constraint{}, err
			}
			types = append(types, ot)
		}
		return constraints.Constraint{Kind: constraints.KindAllowedOrderTypes, AllowedOrderTypes: types}, nil
	case "allowed_instruments":
		return constraints.Constraint{Kind: constraints.KindAllowedInstruments, AllowedInstruments: cc.AllowedInstruments}, nil
	case "trading_window":
		allowed := make([]phase.State, 0, len(cc.AllowedPhases))
		for _, p := range cc.AllowedPhases {
			ph, err := parsePhase(p)
			if err != nil {
				return constraints.Constraint{}, err
			}
			allowed = append(allowed, ph)
		}
		return constraints.Constraint{Kind: constraints.KindTradingWindow, AllowedPhases: allowed}, nil
	case "price_range":
		minP, err := decimal.NewFromString(cc.MinPrice)
		if err != nil {
			return constraints.Constraint{}, fmt.Errorf("price_range: invalid min_price %q: %w", cc.MinPrice, err)
		}
		maxP, err := decimal.NewFromString(cc.MaxPrice)
		if err != nil {
			return constraints.Constraint{}, fmt.Errorf("price_range: invalid max_price %q: %w", cc.MaxPrice, err)
		}
		return constraints.Constraint{Kind: constraints.KindPriceRange, MinPrice: minP, MaxPrice: maxP}, nil
	default:
		return constraints.Constraint{}, fmt.Errorf("unknown constraint kind %q", cc.Kind)
	}
}

func buildFeeSchedules(feeCfg map[string]config.FeeConfig) (map[constraints.Role]fees.Schedule, error) {
	out := make(map[constraints.Role]fees.Schedule, len(feeCfg))
	for name, fc := range feeCfg {
		role, err := constraints.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("fees: %w", err)
		}
		maker, err := decimal.NewFromString(fc.MakerRebate)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.maker_rebate: %w", name, err)
		}
		taker, err := decimal.NewFromString(fc.TakerFee)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.taker_fee: %w", name, err)
		}
		out[role] = fees.Schedule{MakerRebate: maker, TakerFee: taker}
	}
	return out, nil
}
