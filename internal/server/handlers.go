package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/idgen"
	"github.com/ceyewan/snowflake/xerrors"
)

// decodeResponse GET /v1/ids/:id 的响应
type decodeResponse struct {
	ID        idgen.ID  `json:"id"`
	Timestamp int64     `json:"timestamp"`
	NodeID    int64     `json:"node_id"`
	Sequence  int64     `json:"sequence"`
	Time      time.Time `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"node_id":  s.gen.NodeID(),
		"identity": s.gen.Identity(),
	})
}

func (s *Server) handleNext(c *gin.Context) {
	count := 1
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > idgen.MaxBatchSize {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: "count must be an integer in [1, " + strconv.Itoa(idgen.MaxBatchSize) + "]",
				Code:  "invalid_count",
			})
			return
		}
		count = n
	}

	ids, err := s.gen.NextBatch(count)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "generate ids failed", clog.Int("count", count), clog.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: xerrors.GetCode(err)})
		return
	}

	if c.Query("format") == "number" {
		nums := make([]uint64, len(ids))
		for i, id := range ids {
			nums[i] = uint64(id)
		}
		c.JSON(http.StatusOK, gin.H{"ids": nums})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (s *Server) handleDecode(c *gin.Context) {
	id, err := idgen.ParseID(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, idgen.ErrInvalidID) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorResponse{Error: err.Error(), Code: xerrors.GetCode(err)})
		return
	}

	p := s.gen.Decode(id)
	c.JSON(http.StatusOK, decodeResponse{
		ID:        id,
		Timestamp: p.Timestamp,
		NodeID:    p.NodeID,
		Sequence:  p.Sequence,
		Time:      s.gen.Time(id).UTC(),
	})
}
