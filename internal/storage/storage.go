package storage

import "flowex/internal/model"

// TradeSink defines a sink for trade records.
type TradeSink interface {
	PutTradeBatch(trades []model.TradeRecord) error
}

// MultiSink fans a trade batch out to several sinks in order.
type MultiSink []TradeSink

func (m MultiSink) PutTradeBatch(trades []model.TradeRecord) error {
	for _, sink := range m {
		if err := sink.PutTradeBatch(trades); err != nil {
			return err
		}
	}
	return nil
}
