package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeena-krishna/system-monitor/internal/errors"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSystem(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.HostInfo())
}

func (s *Server) handleLatest(c *gin.Context) {
	snapshot, err := s.store.Latest(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if snapshot == nil {
		respondError(c, http.StatusNotFound,
			errors.New().WithMessage(errors.ErrUnavailable, "no snapshot collected yet"))
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleHistory(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	// Without a bucket the raw points come back; with one the range is
	// rolled up so long windows stay small on the wire.
	bucketParam := c.Query("bucket")
	if bucketParam == "" {
		snapshots, err := s.store.QueryRange(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "snapshots": snapshots})
		return
	}

	bucket, parseErr := time.ParseDuration(bucketParam)
	if parseErr != nil || bucket <= 0 {
		respondError(c, http.StatusBadRequest,
			errors.New().WithData(errors.ErrInvalidArgument, bucketParam))
		return
	}
	buckets, err := s.store.AggregateRange(c.Request.Context(), from, to, bucket)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "bucket": bucket.String(), "buckets": buckets})
}

func (s *Server) handleExport(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	snapshots, err := s.store.QueryRange(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, snapshots)
}

func (s *Server) handleOpenAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.OpenAlerts())
}

func (s *Server) handleAlertHistory(c *gin.Context) {
	window := defaultAlertWindow
	if hoursParam := c.Query("hours"); hoursParam != "" {
		hours, err := strconv.Atoi(hoursParam)
		if err != nil || hours <= 0 {
			respondError(c, http.StatusBadRequest,
				errors.New().WithData(errors.ErrInvalidArgument, hoursParam))
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	history, err := s.engine.History(c.Request.Context(), time.Now().Add(-window))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) handleThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Thresholds())
}

func (s *Server) handleAcknowledge(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.Acknowledge(c.Request.Context(), id); err != nil {
		if errors.HasCode(err, errors.ErrAlertNotFound) {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": id})
}

// parseRange reads the half-open [from,to) query window. `to` defaults
// to now, `from` to one hour before `to`.
func parseRange(c *gin.Context) (from, to time.Time, err error) {
	errFactory := errors.New()

	to = time.Now()
	if toParam := c.Query("to"); toParam != "" {
		to, err = time.Parse(time.RFC3339, toParam)
		if err != nil {
			return time.Time{}, time.Time{}, errFactory.WithData(errors.ErrInvalidArgument, toParam)
		}
	}

	from = to.Add(-defaultHistoryWindow)
	if fromParam := c.Query("from"); fromParam != "" {
		from, err = time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return time.Time{}, time.Time{}, errFactory.WithData(errors.ErrInvalidArgument, fromParam)
		}
	}

	return from, to, nil
}
