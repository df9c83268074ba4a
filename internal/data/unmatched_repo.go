package data

import (
	"context"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type unmatchedPaymentRepo struct {
	data *Data
	log  *log.Helper
}

// NewUnmatchedPaymentRepo 创建未匹配凭证 repo
func NewUnmatchedPaymentRepo(data *Data, logger log.Logger) biz.UnmatchedPaymentRepo {
	return &unmatchedPaymentRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Record 登记未匹配凭证，(rail, payment_ref) 已存在时忽略
func (r *unmatchedPaymentRepo) Record(ctx context.Context, p *biz.UnmatchedPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	m := model.UnmatchedPayment{
		ID:              p.ID,
		Rail:            p.Rail,
		PaymentRef:      p.PaymentRef,
		OrderNumber:     p.OrderNumber,
		ExternalOrderID: p.ExternalOrderID,
		UTR:             p.UTR,
		Amount:          p.Amount,
		MerchantVPA:     p.MerchantVPA,
		CounterpartyVPA: p.CounterpartyVPA,
		Failure:         p.Failure,
		CreatedAt:       p.CreatedAt,
	}
	if len(p.RawPayload) > 0 {
		m.RawPayload = datatypes.JSON(p.RawPayload)
	}
	res := r.data.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Infof("unmatched payment already recorded: rail=%s, payment_ref=%s", p.Rail, p.PaymentRef)
	}
	return nil
}

// List 按登记时间倒序分页
func (r *unmatchedPaymentRepo) List(ctx context.Context, page, pageSize int) ([]*biz.UnmatchedPayment, int64, error) {
	db := r.data.db.WithContext(ctx).Model(&model.UnmatchedPayment{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ms []*model.UnmatchedPayment
	if err := db.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*biz.UnmatchedPayment, 0, len(ms))
	for _, m := range ms {
		out = append(out, &biz.UnmatchedPayment{
			ID:              m.ID,
			Rail:            m.Rail,
			OrderNumber:     m.OrderNumber,
			ExternalOrderID: m.ExternalOrderID,
			PaymentRef:      m.PaymentRef,
			UTR:             m.UTR,
			Amount:          m.Amount,
			MerchantVPA:     m.MerchantVPA,
			CounterpartyVPA: m.CounterpartyVPA,
			Failure:         m.Failure,
			RawPayload:      []byte(m.RawPayload),
			CreatedAt:       m.CreatedAt,
		})
	}
	return out, total, nil
}
