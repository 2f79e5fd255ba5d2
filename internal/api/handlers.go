package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/httpx"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (a *API) health(c *gin.Context) {
	c.JSON(200, healthResponse{Status: "healthy", Version: Version})
}

// acquireRequest/acquireResponse are spec.md §6's POST /api/v1/acquire
// body and response shapes. MCPEndpoint is always the acquired VM's IP
// with port 7890, whether or not the guest-agent probe is enabled.
type acquireRequest struct {
	PoolName string `json:"pool_name" binding:"required"`
}

type acquireResponse struct {
	VMName       string `json:"vm_name"`
	IPAddress    string `json:"ip_address"`
	LeaseID      string `json:"lease_id"`
	ResumeTimeMs int64  `json:"resume_time_ms"`
	MCPEndpoint  string `json:"mcp_endpoint"`
}

func (a *API) acquire(c *gin.Context) {
	httpx.Adapt(func(c *gin.Context, req *acquireRequest) (acquireResponse, error) {
		result, err := a.pool.Acquire(c.Request.Context(), req.PoolName)
		if err != nil {
			return acquireResponse{}, err
		}
		return acquireResponse{
			VMName:       result.VMName,
			IPAddress:    result.IPAddress,
			LeaseID:      result.LeaseID,
			ResumeTimeMs: result.ResumeTimeMs,
			MCPEndpoint:  result.IPAddress + ":7890",
		}, nil
	})(c)
}

type releaseRequest struct {
	Reset bool `json:"reset"`
}

// release returns 204 with no body on success (spec.md §6), so it binds
// and calls the pool controller directly rather than through httpx.Adapt,
// which always renders a JSON body.
func (a *API) release(c *gin.Context) {
	var req releaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.RenderError(c, 400, apierror.WrapError(apierror.ErrUsage, err.Error(), err))
			return
		}
	}
	name := c.Param("name")
	if name == "" {
		httpx.RenderError(c, 400, apierror.WrapError(apierror.ErrUsage, "vm name is required", nil))
		return
	}
	if err := a.pool.Release(c.Request.Context(), name, req.Reset); err != nil {
		httpx.RenderError(c, apierror.HTTPStatus(err), err)
		return
	}
	c.Status(204)
}

type resumeResponse struct {
	VMName       string `json:"vm_name"`
	IPAddress    string `json:"ip_address"`
	ResumeTimeMs int64  `json:"resume_time_ms"`
}

func (a *API) resume(c *gin.Context) {
	httpx.AdaptNoBody(func(c *gin.Context) (resumeResponse, error) {
		name := c.Param("name")
		result, err := a.pool.ResumeByName(c.Request.Context(), name)
		if err != nil {
			return resumeResponse{}, err
		}
		return resumeResponse{VMName: name, IPAddress: result.IPAddress, ResumeTimeMs: result.ResumeTime.Milliseconds()}, nil
	})(c)
}
