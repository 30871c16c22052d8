package app

import (
	"time"

	"scribe/api/internal/store"
)

func presentDocument(document store.Document) map[string]any {
	item := map[string]any{
		"id":                document.ID,
		"title":             document.Title,
		"text":              document.Text,
		"preview":           document.Preview,
		"icon":              document.Icon,
		"color":             document.Color,
		"coverImg":          document.CoverImg,
		"coverImgPositionX": document.CoverImgPosX,
		"coverImgPositionY": document.CoverImgPosY,
		"editorVersion":     document.EditorVersion,
		"templateId":        document.TemplateID,
		"fullWidth":         document.FullWidth,
		"insightsEnabled":   document.InsightsEnabled,
		"collectionId":      document.CollectionID,
		"teamId":            document.TeamID,
		"createdBy":         document.CreatedByID,
		"lastModifiedBy":    document.LastModifiedByID,
		"template":          document.IsTemplate,
		"publishedAt":       formatTimePtr(document.PublishedAt),
		"archivedAt":        formatTimePtr(document.ArchivedAt),
		"createdAt":         document.CreatedAt.Format(time.RFC3339),
		"updatedAt":         document.UpdatedAt.Format(time.RFC3339),
	}
	return item
}

func presentDocuments(documents []store.Document) []map[string]any {
	items := make([]map[string]any, 0, len(documents))
	for _, document := range documents {
		items = append(items, presentDocument(document))
	}
	return items
}

func presentComment(comment store.Comment) map[string]any {
	item := map[string]any{
		"id":              comment.ID,
		"documentId":      comment.DocumentID,
		"parentCommentId": comment.ParentCommentID,
		"data":            comment.Data,
		"createdBy":       comment.CreatedByID,
		"resolved":        comment.Resolved(),
		"resolvedAt":      formatTimePtr(comment.ResolvedAt),
		"resolvedById":    comment.ResolvedByID,
		"createdAt":       comment.CreatedAt.Format(time.RFC3339),
		"updatedAt":       comment.UpdatedAt.Format(time.RFC3339),
	}
	if comment.ResolvedBy != nil {
		item["resolvedBy"] = map[string]any{
			"id":   comment.ResolvedBy.ID,
			"name": comment.ResolvedBy.DisplayName,
		}
	}
	return item
}

func presentComments(comments []store.Comment) []map[string]any {
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, presentComment(comment))
	}
	return items
}

func presentCollections(collections []store.Collection) []map[string]any {
	items := make([]map[string]any, 0, len(collections))
	for _, collection := range collections {
		items = append(items, map[string]any{
			"id":          collection.ID,
			"teamId":      collection.TeamID,
			"name":        collection.Name,
			"description": collection.Description,
			"createdAt":   collection.CreatedAt.Format(time.RFC3339),
		})
	}
	return items
}

func presentRevisions(revisions []store.Revision) []map[string]any {
	items := make([]map[string]any, 0, len(revisions))
	for _, revision := range revisions {
		items = append(items, map[string]any{
			"hash":      revision.Hash,
			"title":     revision.Title,
			"author":    revision.Author,
			"createdAt": revision.CreatedAt.Format(time.RFC3339),
		})
	}
	return items
}

func formatTimePtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(time.RFC3339)
}
