package controllers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/ledger"

	"github.com/gin-gonic/gin"
)

// queryList accepts both ?k=a&k=b and ?k=a,b.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func deviceQuery(c *gin.Context) db.DeviceQuery {
	q := db.DeviceQuery{
		Search:     c.Query("q"),
		Status:     c.Query("status"),
		Categories: queryList(c, "category"),
		Groups:     queryList(c, "group"),
		SortBy:     c.DefaultQuery("sort", "name"),
	}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.Size, _ = strconv.Atoi(c.Query("size"))
	return q
}

func int64Param(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, c.Param(name), ledger.ErrInvalidInput)
	}
	return id, nil
}

func uintParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s %q: %w", name, c.Param(name), ledger.ErrInvalidInput)
	}
	return uint(id), nil
}
