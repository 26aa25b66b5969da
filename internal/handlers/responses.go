package handlers

import (
	"fmt"
	"net/http"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/models"
	"responder/internal/triage"

	"github.com/labstack/echo/v4"
)

// SaveResponseHandler stores a human-edited draft
// @Summary Save edited response
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.SaveResponseRequest true "Edited draft"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/save-response [post]
func SaveResponseHandler(responder *triage.Responder, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SaveResponseRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if req.EmailID == "" {
			return badRequest(c, "Email ID and response are required")
		}

		userID := auth.UserID(c)
		if err := responder.SaveEdit(c.Request().Context(), userID, req.EmailID, req.Response); err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventEdit, req.EmailID, map[string]interface{}{
			"length": len(req.Response),
		})

		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Response saved"})
	}
}

// ListCommentsHandler returns the comment thread of a conversation
// @Summary List comments
// @Tags email-responder
// @Produce json
// @Param emailId query string true "Conversation id"
// @Success 200 {object} models.CommentsResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/comments [get]
func ListCommentsHandler(responder *triage.Responder) echo.HandlerFunc {
	return func(c echo.Context) error {
		emailID := c.QueryParam("emailId")
		if emailID == "" {
			return badRequest(c, "emailId is required")
		}

		comments, err := responder.Comments(c.Request().Context(), auth.UserID(c), emailID)
		if err != nil {
			return errorJSON(c, err)
		}
		if comments == nil {
			comments = []models.Comment{}
		}

		return c.JSON(http.StatusOK, models.CommentsResponse{Success: true, Comments: comments})
	}
}

// AddCommentHandler appends a comment to a conversation
// @Summary Add comment
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.CommentRequest true "Comment"
// @Success 200 {object} models.CommentsResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/comments [post]
func AddCommentHandler(responder *triage.Responder, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.CommentRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if req.EmailID == "" {
			return badRequest(c, "emailId and content are required")
		}

		userID := auth.UserID(c)
		comment, err := responder.AddComment(c.Request().Context(), userID, req.EmailID, req.Content, req.IsInternal)
		if err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventComment, req.EmailID, map[string]interface{}{
			"comment_id":  comment.ID,
			"is_internal": comment.IsInternal,
		})

		return c.JSON(http.StatusOK, models.CommentsResponse{
			Success:  true,
			Comments: []models.Comment{},
			Comment:  comment,
		})
	}
}

// DeleteCommentHandler removes one of the caller's comments
// @Summary Delete comment
// @Tags email-responder
// @Produce json
// @Param commentId query string true "Comment id"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/comments [delete]
func DeleteCommentHandler(responder *triage.Responder, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		commentID := c.QueryParam("commentId")
		if commentID == "" {
			return badRequest(c, "commentId is required")
		}

		userID := auth.UserID(c)
		if err := responder.DeleteComment(c.Request().Context(), userID, commentID); err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventCommentDelete, "", map[string]interface{}{
			"comment_id": commentID,
		})

		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Comment deleted"})
	}
}

// BulkReplyHandler sends replies for several conversations
// @Summary Send replies in bulk
// @Description Sends the custom message, or each stored draft, through the caller's linked mailbox. Items fail individually.
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.BulkReplyRequest true "Conversations to answer"
// @Success 200 {object} models.BulkReplyResponse
// @Failure 400 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/bulk-reply [post]
func BulkReplyHandler(responder *triage.Responder, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.BulkReplyRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if len(req.EmailIDs) == 0 {
			return badRequest(c, "Email IDs are required")
		}

		ctx := c.Request().Context()
		userID := auth.UserID(c)
		report, err := responder.BulkSend(ctx, userID, req.EmailIDs, req.CustomMessage)
		if err != nil {
			return errorJSON(c, err)
		}

		for _, result := range report.Results {
			if !result.Success {
				continue
			}
			auditService.Record(ctx, userID, audit.EventSend, result.EmailID, map[string]interface{}{
				"message_id": result.MessageID,
				"custom":     req.CustomMessage != "",
			})
		}

		return c.JSON(http.StatusOK, models.BulkReplyResponse{
			Success: report.Sent > 0,
			Sent:    report.Sent,
			Failed:  report.Failed,
			Results: report.Results,
			Errors:  report.Errors,
		})
	}
}

// MailAccountHandler links an OAuth mailbox to the caller
// @Summary Link mail account
// @Tags email-responder
// @Accept json
// @Produce json
// @Param request body models.MailAccountRequest true "OAuth tokens"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/mail-account [put]
func MailAccountHandler(responder *triage.Responder, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.MailAccountRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		userID := auth.UserID(c)
		account := &models.MailAccount{
			UserID:       userID,
			Provider:     req.Provider,
			EmailAddress: req.EmailAddress,
			AccessToken:  req.AccessToken,
			ExpiresAt:    req.ExpiresAt,
		}
		if req.RefreshToken != "" {
			refresh := req.RefreshToken
			account.RefreshToken = &refresh
		}

		if err := responder.LinkMailAccount(c.Request().Context(), account); err != nil {
			return errorJSON(c, err)
		}

		auditService.Record(c.Request().Context(), userID, audit.EventMailAccount, "", map[string]interface{}{
			"provider": account.Provider,
			"address":  audit.MaskEmail(account.EmailAddress),
		})

		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Mail account linked"})
	}
}
