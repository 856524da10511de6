package db

import (
	"context"
	"fmt"
	"math/big"
)

// Gap is a maximal run of unused keys inside a scanned window, both bounds
// inclusive.
type Gap struct {
	Lo *big.Int
	Hi *big.Int
}

// GapScan finds runs of absent keys between lo and hi inclusive, in
// ascending order, stopping after limit gaps (or all of them when limit is
// zero or less). Keys stream in key order from a single query, so only rows
// up to the last reported gap are read. The bucket's keys must be numeric,
// either decimal or fixed width hex.
func (s *Store) GapScan(ctx context.Context, bucket string, lo *big.Int, hi *big.Int, limit int) ([]Gap, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	if info.schema.KeyKind == KeyString {
		return nil, fmt.Errorf("bucket %q: gap scan needs numeric keys", bucket)
	}

	if lo.Sign() < 0 || lo.Cmp(hi) > 0 {
		return nil, fmt.Errorf("invalid gap scan window [%s, %s]", lo, hi)
	}

	loArg, err := info.numericKeyArg(lo)
	if err != nil {
		return nil, err
	}

	hiArg, err := info.numericKeyArg(hi)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT k FROM %s WHERE k >= ? AND k <= ? ORDER BY k ASC",
		info.schema.Name), loArg, hiArg)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var gaps []Gap

	one := big.NewInt(1)
	prev := new(big.Int).Sub(lo, one)

	for rows.Next() {
		cur, err := scanNumericKey(info, rows.Scan)
		if err != nil {
			return nil, err
		}

		if new(big.Int).Sub(cur, prev).Cmp(one) > 0 {
			gaps = append(gaps, Gap{
				Lo: new(big.Int).Add(prev, one),
				Hi: new(big.Int).Sub(cur, one),
			})

			if limit > 0 && len(gaps) >= limit {
				return gaps, rows.Close()
			}
		}

		prev = cur
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	if hi.Cmp(prev) > 0 {
		gaps = append(gaps, Gap{
			Lo: new(big.Int).Add(prev, one),
			Hi: new(big.Int).Set(hi),
		})
	}

	return gaps, nil
}

func (info *bucketInfo) numericKeyArg(n *big.Int) (any, error) {
	if info.schema.KeyKind == KeyDecimal {
		if !n.IsInt64() {
			return nil, fmt.Errorf("bucket %q: key %s overflows decimal keys", info.schema.Name, n)
		}

		return n.Int64(), nil
	}

	return fmt.Sprintf("%032x", n), nil
}

func scanNumericKey(info *bucketInfo, scan func(...any) error) (*big.Int, error) {
	if info.schema.KeyKind == KeyDecimal {
		var k int64

		err := scan(&k)
		if err != nil {
			return nil, err
		}

		return big.NewInt(k), nil
	}

	var k string

	err := scan(&k)
	if err != nil {
		return nil, err
	}

	n, ok := new(big.Int).SetString(k, 16)
	if !ok {
		return nil, fmt.Errorf("bucket %q: malformed hex key %q", info.schema.Name, k)
	}

	return n, nil
}
