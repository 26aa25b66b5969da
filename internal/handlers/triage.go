package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/ingest"
	"responder/internal/models"
	"responder/internal/triage"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Pipeline bundles the stages an upload can chain into
type Pipeline struct {
	Persister    *triage.Persister
	Classifier   *triage.Classifier
	Grouper      *triage.Grouper
	AutoClassify bool
}

// UploadHandler replaces the caller's conversations with an export
// @Summary Upload support export
// @Description Accepts pre-parsed rows as JSON or a CSV file in the multipart field "file". Replaces all conversations of the caller.
// @Tags email-responder
// @Accept json,mpfd
// @Produce json
// @Param request body models.UploadRequest false "Header-keyed rows"
// @Param file formData file false "CSV export"
// @Success 200 {object} models.UploadResponse
// @Failure 400 {object} models.APIResponse
// @Failure 500 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/upload [post]
func UploadHandler(p *Pipeline, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := auth.UserID(c)

		records, err := readUploadRecords(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		result, err := p.Persister.Ingest(ctx, userID, records)
		if err != nil {
			return errorJSON(c, err)
		}

		response := models.UploadResponse{
			Success:  true,
			Count:    result.Created,
			Filtered: result.Filtered,
			Skipped:  result.Skipped,
			EmailIDs: result.IDs,
			Emails:   result.Conversations,
		}

		auditService.Record(ctx, userID, audit.EventUpload, "", map[string]interface{}{
			"rows":     len(records),
			"created":  result.Created,
			"filtered": result.Filtered,
			"skipped":  result.Skipped,
		})

		if p.AutoClassify && p.Classifier != nil && p.Grouper != nil && len(result.IDs) > 0 {
			groups, err := classifyAndGroup(c, p, userID, result.IDs)
			if err != nil {
				// The upload itself succeeded; the client can retry /group.
				zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Auto-classification after upload failed")
			} else {
				response.Groups = groups
				auditService.Record(ctx, userID, audit.EventClassify, "", map[string]interface{}{
					"emails": len(result.IDs),
					"groups": len(groups),
				})
			}
		}

		return c.JSON(http.StatusOK, response)
	}
}

// readUploadRecords accepts either a multipart CSV file or a JSON body of
// row objects whose values may be of any JSON type
func readUploadRecords(c echo.Context) ([]map[string]string, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("No file uploaded: %v", err)
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("Failed to open uploaded file: %v", err)
		}
		defer file.Close()

		records, err := ingest.ReadCSV(file)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse CSV: %v", err)
		}
		if len(records) == 0 {
			return nil, errors.New("No emails provided")
		}
		return records, nil
	}

	var req models.UploadRequest
	if err := c.Bind(&req); err != nil {
		return nil, fmt.Errorf("Invalid request body: %v", err)
	}
	if len(req.Emails) == 0 {
		return nil, errors.New("No emails provided")
	}

	records := make([]map[string]string, 0, len(req.Emails))
	for _, row := range req.Emails {
		record := make(map[string]string, len(row))
		for key, value := range row {
			record[key] = stringify(value)
		}
		records = append(records, record)
	}
	return records, nil
}

// stringify renders a decoded JSON value the way a CSV cell would hold it
func stringify(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case json.Number:
		return value.String()
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(b)
	}
}

func classifyAndGroup(c echo.Context, p *Pipeline, userID string, ids []string) ([]models.Group, error) {
	ctx := c.Request().Context()
	classified, err := p.Classifier.Classify(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	return p.Grouper.Group(ctx, userID, classified)
}

// GroupHandler classifies conversations and files them into groups
// @Summary Classify and group conversations
// @Description Runs LLM classification in batches and groups the results by category
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.GroupRequest true "Conversation ids"
// @Success 200 {object} models.GroupsResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/group [post]
func GroupHandler(p *Pipeline, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.GroupRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if len(req.EmailIDs) == 0 {
			return badRequest(c, "Email IDs are required")
		}

		userID := auth.UserID(c)
		groups, err := classifyAndGroup(c, p, userID, req.EmailIDs)
		if err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventClassify, "", map[string]interface{}{
			"emails": len(req.EmailIDs),
			"groups": len(groups),
		})

		return c.JSON(http.StatusOK, models.GroupsResponse{Success: true, Groups: groups})
	}
}

// RegroupHandler regroups stored classifications without calling the LLM
// @Summary Regroup conversations
// @Tags email-responder
// @Produce json
// @Success 200 {object} models.GroupsResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/regroup [post]
func RegroupHandler(grouper *triage.Grouper, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := auth.UserID(c)
		groups, err := grouper.Regroup(c.Request().Context(), userID)
		if err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventRegroup, "", map[string]interface{}{
			"groups": len(groups),
		})

		return c.JSON(http.StatusOK, models.GroupsResponse{Success: true, Groups: groups})
	}
}

// ListGroupsHandler returns the caller's groups with their conversations
// @Summary List groups
// @Tags email-responder
// @Produce json
// @Success 200 {object} models.GroupsResponse
// @Security BearerAuth
// @Router /api/email-responder/groups [get]
func ListGroupsHandler(store triage.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		groups, err := store.ListGroups(c.Request().Context(), auth.UserID(c))
		if err != nil {
			return errorJSON(c, err)
		}
		if groups == nil {
			groups = []models.Group{}
		}
		return c.JSON(http.StatusOK, models.GroupsResponse{Success: true, Groups: groups})
	}
}

// GenerateHandler drafts replies for conversations or a whole group
// @Summary Generate reply drafts
// @Description Drafts replies in batches, honoring custom instructions and response rules
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.GenerateRequest true "Selection and drafting options"
// @Success 200 {object} models.GenerateResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/generate [post]
func GenerateHandler(drafter *triage.Drafter, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.GenerateRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if len(req.EmailIDs) == 0 && req.GroupID == "" {
			return badRequest(c, "Either emailIds or groupId is required")
		}

		userID := auth.UserID(c)
		drafts, err := drafter.Generate(c.Request().Context(), userID, triage.DraftRequest{
			EmailIDs:           req.EmailIDs,
			GroupID:            req.GroupID,
			CustomInstructions: req.CustomInstructions,
			Rules:              req.ResponseRules,
		})
		if err != nil {
			return errorJSON(c, err)
		}

		results := make([]models.DraftResult, len(drafts))
		for i, d := range drafts {
			results[i] = models.DraftResult{EmailID: d.EmailID, Response: d.Response}
		}

		auditService.Record(c.Request().Context(), userID, audit.EventDraft, "", map[string]interface{}{
			"requested": len(req.EmailIDs),
			"group_id":  req.GroupID,
			"drafted":   len(drafts),
			"rules":     len(req.ResponseRules),
		})

		return c.JSON(http.StatusOK, models.GenerateResponse{
			Success:   true,
			Count:     len(results),
			Responses: results,
		})
	}
}
