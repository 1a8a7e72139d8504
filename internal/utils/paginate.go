package utils

import (
	"fmt"

	"gorm.io/gorm"
)

type PaginatedResult struct {
	NumPages    uint
	CurrentPage uint
	NextPage    uint
}

func Paginate(opts []QueryOption, db *gorm.DB, result *PaginatedResult) func(db *gorm.DB) *gorm.DB {
	return func(paginatedDB *gorm.DB) *gorm.DB {
		q := Query{
			Limit:  50,
			Offset: 0,
			SortBy: "id",
			Order:  OrderAsc,
		}

		for _, opt := range opts {
			opt.Apply(&q)
		}

		var count int64

		db.Count(&count)

		if q.Limit > 0 {
			result.NumPages = uint(count) / uint(q.Limit)

			if uint(count)%uint(q.Limit) != 0 {
				result.NumPages++
			}

			result.CurrentPage = uint(q.Offset) / uint(q.Limit)

			if result.CurrentPage+1 < result.NumPages {
				result.NextPage = result.CurrentPage + 1
			} else {
				result.NextPage = result.CurrentPage
			}
		}

		return paginatedDB.Offset(q.Offset).Limit(q.Limit).Order(fmt.Sprintf("%s %s", q.SortBy, q.Order))
	}
}
