package batchz

const (
	transactionBuyField  = "buy"
	transactionSellField = "sell"
)

// analyseTransactions computes the net flow: total bought minus total sold.
func analyseTransactions(batch []any) TransactionSummary {
	var buy, sell int64
	for _, item := range batch {
		op, _ := AsRecord(item)
		buy += op.Int(transactionBuyField)
		sell += op.Int(transactionSellField)
	}
	return TransactionSummary{
		Operations: len(batch),
		NetFlow:    buy - sell,
	}
}

func transactionPredicate(c Criterion) (Predicate, bool) {
	switch c {
	case CriterionHeight, CriterionHigh:
		return volumeAbove(200), true
	case CriterionLarge:
		return volumeAbove(100), true
	}
	return nil, false
}

func volumeAbove(limit int64) Predicate {
	return func(item any) bool {
		op, ok := AsRecord(item)
		return ok && (op.Int(transactionBuyField) > limit || op.Int(transactionSellField) > limit)
	}
}
