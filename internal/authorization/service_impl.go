package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrder     = "order"
	ObjectOrderItem = "order_item"
	ObjectPayment   = "payment"
	ObjectEvent     = "event"
)

const (
	ActionOrderView    = "order.view"
	ActionOrderCreate  = "order.create"
	ActionOrderStatus  = "order.status"
	ActionOrderCancel  = "order.cancel"
	ActionOrderKitchen = "order.kitchen"

	ActionPaymentView   = "payment.view"
	ActionPaymentAdd    = "payment.add"
	ActionPaymentRefund = "payment.refund"

	ActionEventView = "event.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads role policies from the casbin_rule table and seeds the
// defaults. Rows added by operators survive restarts.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role authdomain.Role, object string, action string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("role", role.String()),
			zap.String("object", object),
			zap.String("action", action),
		)
		return authdomain.ErrForbidden
	}
	return nil
}

func subject(role authdomain.Role) string {
	return fmt.Sprintf("role:%s", strings.ToLower(role.String()))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	cashier := subject(authdomain.RoleCashier)
	kitchen := subject(authdomain.RoleKitchen)
	manager := subject(authdomain.RoleManager)
	owner := subject(authdomain.RoleOwner)

	policies := [][]string{
		// Front of house
		{cashier, ObjectOrder, ActionOrderView},
		{cashier, ObjectOrder, ActionOrderCreate},
		{cashier, ObjectOrder, ActionOrderStatus},
		{cashier, ObjectOrder, ActionOrderCancel},
		{cashier, ObjectPayment, ActionPaymentView},
		{cashier, ObjectPayment, ActionPaymentAdd},
		{cashier, ObjectEvent, ActionEventView},

		// Kitchen
		{kitchen, ObjectOrder, ActionOrderView},
		{kitchen, ObjectOrder, ActionOrderStatus},
		{kitchen, ObjectOrderItem, ActionOrderKitchen},
		{kitchen, ObjectEvent, ActionEventView},

		// Manager, on top of everything a cashier can do
		{manager, ObjectOrderItem, ActionOrderKitchen},
		{manager, ObjectPayment, ActionPaymentRefund},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{manager, cashier},
		{owner, manager},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
