package data

import (
	"context"
	"errors"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type addressRepo struct {
	data *Data
	log  *log.Helper
}

// NewAddressRepo 创建地址簿 repo（只读）
func NewAddressRepo(data *Data, logger log.Logger) biz.AddressRepo {
	return &addressRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetDefault 用户默认地址，没有时返回 nil
func (r *addressRepo) GetDefault(ctx context.Context, userID string) (*biz.Address, error) {
	var m model.Address
	err := r.data.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		Order("updated_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &biz.Address{
		ID:           m.ID,
		UserID:       m.UserID,
		Label:        m.Label,
		Name:         m.Name,
		Phone:        m.Phone,
		AddressLine1: m.AddressLine1,
		AddressLine2: m.AddressLine2,
		City:         m.City,
		State:        m.State,
		Pincode:      m.Pincode,
		IsDefault:    m.IsDefault,
	}, nil
}
