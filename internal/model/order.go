package model

import (
	"time"

	"gorm.io/datatypes"
)

// Order order model
type Order struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement;comment:订单ID" json:"id"`
	OrderCode    string `gorm:"type:varchar(32);uniqueIndex:uk_orders_code;not null;comment:订单号" json:"order_code"`
	UserID       uint64 `gorm:"type:bigint unsigned;not null;index:idx_orders_user;comment:用户ID" json:"user_id"`
	TotalNum     int    `gorm:"type:int;not null;default:0;comment:商品总数" json:"total_num"`
	TotalPrice   int64  `gorm:"type:bigint;not null;default:0;comment:订单总价（分）" json:"total_price"`
	PostagePrice int64  `gorm:"type:bigint;not null;default:0;comment:邮费（分）" json:"postage_price"`
	CouponPrice  int64  `gorm:"type:bigint;not null;default:0;comment:优惠券抵扣（分）" json:"coupon_price"`
	PayPrice     int64  `gorm:"type:bigint;not null;default:0;comment:实付金额（分）" json:"pay_price"`
	RefundPrice  int64  `gorm:"type:bigint;not null;default:0;comment:已退款金额（分）" json:"refund_price"`

	Paid    bool       `gorm:"type:tinyint(1);not null;default:0;comment:是否支付" json:"paid"`
	PayType string     `gorm:"type:varchar(16);not null;default:'';comment:支付方式" json:"pay_type"`
	PaidAt  *time.Time `gorm:"type:timestamp;comment:支付时间" json:"paid_at,omitempty"`

	Status       int8   `gorm:"type:tinyint;not null;default:0;index:idx_orders_status;comment:履约状态：0-待发货/待核销，1-待收货，2-待评价，3-已完成" json:"status"`
	RefundStatus int8   `gorm:"type:tinyint;not null;default:0;comment:退款状态：0-无，1-申请中，2-已退款" json:"refund_status"`
	RefundReason string `gorm:"type:varchar(255);not null;default:'';comment:退款原因" json:"refund_reason"`
	RefundAmount int64  `gorm:"type:bigint;not null;default:0;comment:申请退款金额（分）" json:"refund_amount"`
	RefuseReason string `gorm:"type:varchar(255);not null;default:'';comment:拒绝退款原因" json:"refuse_reason"`

	IsDel       bool `gorm:"type:tinyint(1);not null;default:0;comment:用户删除" json:"is_del"`
	IsSystemDel bool `gorm:"type:tinyint(1);not null;default:0;comment:后台删除" json:"is_system_del"`

	ShippingType  int8    `gorm:"type:tinyint;not null;default:1;comment:配送方式：1-快递，2-门店自提" json:"shipping_type"`
	DeliveryType  string  `gorm:"type:varchar(16);not null;default:'';comment:发货类型：express/send/fictitious" json:"delivery_type"`
	DeliveryName  string  `gorm:"type:varchar(64);not null;default:'';comment:快递公司/送货人" json:"delivery_name"`
	DeliveryID    string  `gorm:"type:varchar(64);not null;default:'';comment:快递单号/送货人电话" json:"delivery_id"`
	VerifyCode    *string `gorm:"type:varchar(16);uniqueIndex:uk_orders_verify;comment:核销码（仅自提）" json:"verify_code,omitempty"`
	IsAlterPrice  bool    `gorm:"type:tinyint(1);not null;default:0;comment:是否改价" json:"is_alter_price"`
	OriginalPrice int64   `gorm:"type:bigint;not null;default:0;comment:改价前实付（分）" json:"original_price"`

	FlashSaleID      uint64 `gorm:"type:bigint unsigned;not null;default:0;comment:秒杀商品ID" json:"flash_sale_id"`
	BargainSessionID uint64 `gorm:"type:bigint unsigned;not null;default:0;comment:砍价记录ID" json:"bargain_session_id"`
	TeamCampaignID   uint64 `gorm:"type:bigint unsigned;not null;default:0;comment:拼团活动ID" json:"team_campaign_id"`
	// TeamID is the leader row id of the team this order joined; 0 until paid
	TeamID    uint64 `gorm:"type:bigint unsigned;not null;default:0;index:idx_orders_team;comment:团ID" json:"team_id"`
	JoinTeam  uint64 `gorm:"type:bigint unsigned;not null;default:0;comment:请求加入的团ID" json:"join_team"`
	Remark    string `gorm:"type:varchar(500);not null;default:'';comment:备注" json:"remark"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// OrderItem order line
type OrderItem struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement;comment:明细ID" json:"id"`
	OrderID   uint64         `gorm:"type:bigint unsigned;not null;index:idx_order_items_order;comment:订单ID" json:"order_id"`
	ProductID uint64         `gorm:"type:bigint unsigned;not null;comment:商品ID" json:"product_id"`
	SkuKey    string         `gorm:"type:varchar(128);not null;comment:规格" json:"sku_key"`
	Quantity  int            `gorm:"type:int;not null;comment:数量" json:"quantity"`
	Price     int64          `gorm:"type:bigint;not null;comment:单价（分）" json:"price"`
	Snapshot  datatypes.JSON `gorm:"type:json;comment:商品快照" json:"snapshot,omitempty"`
	CreatedAt time.Time      `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
}

// TableName set name
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusLog append-only audit row, one per transition
type OrderStatusLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       uint64    `gorm:"type:bigint unsigned;not null;index:idx_order_logs_order;comment:订单ID" json:"order_id"`
	ChangeType    string    `gorm:"type:varchar(32);not null;comment:操作类型" json:"change_type"`
	ChangeMessage string    `gorm:"type:varchar(255);not null;comment:操作备注" json:"change_message"`
	CreatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:操作时间" json:"created_at"`
}

// TableName set name
func (OrderStatusLog) TableName() string {
	return "order_status_logs"
}

// fulfillment status
const (
	OrderStatusAwaitShip    int8 = 0 // 待发货（自提：待核销）
	OrderStatusAwaitReceipt int8 = 1 // 待收货
	OrderStatusAwaitReview  int8 = 2 // 待评价
	OrderStatusCompleted    int8 = 3 // 已完成
)

// refund status; a rejected request goes back to none
const (
	RefundStatusNone      int8 = 0 // 未退款
	RefundStatusRequested int8 = 1 // 申请中
	RefundStatusRefunded  int8 = 2 // 已退款
)

// shipping type
const (
	ShippingTypeDelivery int8 = 1 // 快递
	ShippingTypePickup   int8 = 2 // 门店自提
)

// delivery type
const (
	DeliveryExpress    = "express"    // 快递
	DeliverySend       = "send"       // 送货
	DeliveryFictitious = "fictitious" // 虚拟发货
)

// PaymentMethod payment method const
const (
	PayTypeWechat  = "wechat"
	PayTypeAlipay  = "alipay"
	PayTypeBalance = "balance"
	PayTypeOffline = "offline"
)

// status log change types
const (
	ChangeCreate         = "create"
	ChangePaySuccess     = "pay_success"
	ChangeDeliveryGoods  = "delivery_goods"
	ChangeDelivery       = "delivery"
	ChangeDeliveryVirt   = "delivery_fictitious"
	ChangeTracking       = "change_tracking"
	ChangePrice          = "order_edit"
	ChangeRefundApply    = "refund_apply"
	ChangeRefundPrice    = "refund_price"
	ChangeRefundRefuse   = "refund_refuse"
	ChangeWriteOff       = "write_off"
	ChangeTakeDelivery   = "user_take_delivery"
	ChangeComplete       = "order_complete"
	ChangeRemove         = "remove_order"
	ChangeSystemDelete   = "system_delete"
	ChangeTeamFailRefund = "team_fail_refund"
)

// display labels
const (
	LabelDeleted          = "deleted"
	LabelRefunded         = "refunded"
	LabelRefunding        = "refunding"
	LabelUnpaid           = "unpaid"
	LabelAwaitingShipment = "awaiting_shipment"
	LabelAwaitingWriteOff = "awaiting_write_off"
	LabelAwaitingReceipt  = "awaiting_receipt"
	LabelAwaitingReview   = "awaiting_review"
	LabelCompleted        = "completed"
)

// IsPickup in-store pickup order
func (o *Order) IsPickup() bool {
	return o.ShippingType == ShippingTypePickup
}

// IsTeamOrder order placed through a team campaign
func (o *Order) IsTeamOrder() bool {
	return o.TeamCampaignID > 0
}

// Refundable remaining refundable amount in cents
func (o *Order) Refundable() int64 {
	return o.PayPrice - o.RefundPrice
}

// StatusLabel derived display status: deleted > refund > unpaid > fulfillment
func (o *Order) StatusLabel() string {
	switch {
	case o.IsDel || o.IsSystemDel:
		return LabelDeleted
	case o.RefundStatus == RefundStatusRefunded:
		return LabelRefunded
	case o.RefundStatus == RefundStatusRequested:
		return LabelRefunding
	case !o.Paid:
		return LabelUnpaid
	}

	switch o.Status {
	case OrderStatusAwaitShip:
		if o.IsPickup() {
			return LabelAwaitingWriteOff
		}
		return LabelAwaitingShipment
	case OrderStatusAwaitReceipt:
		return LabelAwaitingReceipt
	case OrderStatusAwaitReview:
		return LabelAwaitingReview
	default:
		return LabelCompleted
	}
}
