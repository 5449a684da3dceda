// Package journal 订单事件的本地留痕：重启后可恢复近期关闭的券商订单 id，
// 避免旧成交被当成未知订单重新播报。
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"broker-bridge-go/order"
)

const (
	bucketTransitions = "transitions"
	bucketClosed      = "closed"
)

// BoltJournal bbolt 实现的订单事件日志。
type BoltJournal struct {
	db *bolt.DB
}

// transitionRecord 一条状态留痕。
type transitionRecord struct {
	OrderID   string  `json:"order_id"`
	BrokerID  int64   `json:"broker_id"`
	Status    string  `json:"status"`
	FillQty   float64 `json:"fill_qty,omitempty"`
	FillPrice float64 `json:"fill_price,omitempty"`
	Time      int64   `json:"ts"` // unix nano
}

func Open(path string) (*BoltJournal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	j := &BoltJournal{db: db}
	if err := j.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *BoltJournal) ensureBuckets() error {
	return j.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTransitions)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketClosed)); err != nil {
			return err
		}
		return nil
	})
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

// RecordTransition 追加一条状态留痕，键为单调递增序号。
func (j *BoltJournal) RecordTransition(orderID string, brokerID int64, status order.Status, fillQty, fillPrice float64) error {
	rec := transitionRecord{
		OrderID:   orderID,
		BrokerID:  brokerID,
		Status:    string(status),
		FillQty:   fillQty,
		FillPrice: fillPrice,
		Time:      time.Now().UnixNano(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTransitions))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(u64Key(seq), data)
	})
}

// RecordClosed 记录一个已关闭的券商订单 id。
func (j *BoltJournal) RecordClosed(brokerID int64) error {
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(time.Now().UnixNano()))
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketClosed)).Put(u64Key(uint64(brokerID)), ts)
	})
}

// ClosedIDs 返回最近记录的已关闭 id（用于重启预热）。
func (j *BoltJournal) ClosedIDs(limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	out := make([]int64, 0, limit)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketClosed)).Cursor()
		for k, _ := c.Last(); k != nil && len(out) < limit; k, _ = c.Prev() {
			out = append(out, int64(binary.BigEndian.Uint64(k)))
		}
		return nil
	})
	return out, err
}

// Transitions 按写入顺序返回某本地订单的全部留痕（诊断用）。
func (j *BoltJournal) Transitions(orderID string) ([]order.StatusEvent, error) {
	var out []order.StatusEvent
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketTransitions)).ForEach(func(_, v []byte) error {
			var rec transitionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.OrderID != orderID {
				return nil
			}
			out = append(out, order.StatusEvent{
				OrderID:      rec.OrderID,
				BrokerID:     rec.BrokerID,
				Status:       order.Status(rec.Status),
				FillQuantity: rec.FillQty,
				FillPrice:    rec.FillPrice,
				Time:         time.Unix(0, rec.Time),
			})
			return nil
		})
	})
	return out, err
}

func u64Key(v uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, v)
	return k
}
