package utils

import (
	"sort"

	"campuslink/internal/models"
)

// BuildCommentTree turns the flat comment list of one thread into an ordered
// forest. Only active comments take part. Siblings are ordered by score
// descending; equal scores keep creation order. A comment whose parent is
// missing or not active is left out together with its replies.
func BuildCommentTree(comments []models.Comment) []*models.CommentNode {
	active := make([]*models.Comment, 0, len(comments))
	for i := range comments {
		if comments[i].Status == models.CommentActive {
			active = append(active, &comments[i])
		}
	}

	// 先按创建顺序排好，再按分数做稳定排序，同分保持创建顺序
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Score > active[j].Score
	})

	var roots []*models.Comment
	children := make(map[int64][]*models.Comment)
	for _, c := range active {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	visited := make(map[int64]bool, len(active))
	return attachReplies(roots, children, visited)
}

// attachReplies expands each comment with its children. visited stops a
// malformed parent chain from being walked twice.
func attachReplies(list []*models.Comment, children map[int64][]*models.Comment, visited map[int64]bool) []*models.CommentNode {
	nodes := make([]*models.CommentNode, 0, len(list))
	for _, c := range list {
		if visited[c.ID] {
			continue
		}
		visited[c.ID] = true
		node := &models.CommentNode{Comment: *c}
		node.Replies = attachReplies(children[c.ID], children, visited)
		nodes = append(nodes, node)
	}
	return nodes
}

// CountNodes returns the number of comments in a forest.
func CountNodes(nodes []*models.CommentNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Replies)
	}
	return n
}
