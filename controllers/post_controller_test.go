package controllers_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogicum/models"
)

func TestIndexShowsOnlyVisiblePosts(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	pub := createCategory(t, db, "life", true)
	hidden := createCategory(t, db, "drafts", false)

	visible := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &pub.ID, Title: "visible",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &pub.ID, Title: "unpublished",
		IsPublished: false, PublishAt: hoursAgo(1),
	})
	createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &pub.ID, Title: "scheduled",
		IsPublished: true, PublishAt: time.Now().Add(24 * time.Hour),
	})
	createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &hidden.ID, Title: "hidden category",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createPost(t, db, models.Post{
		AuthorID: alice.ID, Title: "no category",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createComment(t, db, visible.ID, alice.ID, "first")
	createComment(t, db, visible.ID, alice.ID, "second")

	w := doGET(t, r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"visible"}, itemTitles(t, w))

	post := feedItems(t, w)[0].(map[string]interface{})
	assert.EqualValues(t, 2, post["comment_count"])
}

func TestIndexOrdersNewestFirst(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)

	for i, title := range []string{"oldest", "middle", "newest"} {
		createPost(t, db, models.Post{
			AuthorID: alice.ID, CategoryID: &cat.ID, Title: title,
			IsPublished: true, PublishAt: hoursAgo(10 - i),
		})
	}

	w := doGET(t, r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"newest", "middle", "oldest"}, itemTitles(t, w))
}

func TestIndexPagination(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)
	for i := 0; i < 5; i++ {
		createPost(t, db, models.Post{
			AuthorID: alice.ID, CategoryID: &cat.ID, Title: fmt.Sprintf("post-%d", i),
			IsPublished: true, PublishAt: hoursAgo(10 - i),
		})
	}

	// PAGE_SIZE is pinned to 3 for the test binary.
	w := doGET(t, r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, feedItems(t, w), 3)
	data := decodeData(t, w)
	pagination := data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 5, pagination["total"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	w = doGET(t, r, "/?page=2", "")
	assert.Len(t, feedItems(t, w), 2)

	// Out-of-range pages clamp to the last page instead of erroring, and the
	// payload reports the page actually served.
	w = doGET(t, r, "/?page=99", "")
	assert.Len(t, feedItems(t, w), 2)
	pagination = decodeData(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["page"])
}

func TestEmptyFeedClampsPageToFirst(t *testing.T) {
	r, _ := newTestApp(t)

	w := doGET(t, r, "/?page=99", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, feedItems(t, w))

	pagination := decodeData(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 0, pagination["total"])
	assert.EqualValues(t, 0, pagination["total_pages"])
}

func TestCategoryFeed(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	life := createCategory(t, db, "life", true)
	tech := createCategory(t, db, "tech", true)
	drafts := createCategory(t, db, "drafts", false)

	createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &life.ID, Title: "life post",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &tech.ID, Title: "tech post",
		IsPublished: true, PublishAt: hoursAgo(1),
	})

	w := doGET(t, r, "/category/life/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"life post"}, itemTitles(t, w))

	// An unpublished category is not found no matter what its posts say.
	w = doGET(t, r, "/category/"+drafts.Slug+"/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doGET(t, r, "/category/missing/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetailAuthorBypass(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	cat := createCategory(t, db, "life", true)

	hidden := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "draft",
		IsPublished: false, PublishAt: hoursAgo(1),
	})
	path := fmt.Sprintf("/posts/%d/", hidden.ID)

	assert.Equal(t, http.StatusNotFound, doGET(t, r, path, "").Code)
	assert.Equal(t, http.StatusNotFound, doGET(t, r, path, bearer(t, bob)).Code)

	w := doGET(t, r, path, bearer(t, alice))
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	post := data["post"].(map[string]interface{})
	assert.Equal(t, "draft", post["title"])
}

func TestDetailListsCommentsOldestFirst(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "with comments",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createComment(t, db, post.ID, alice.ID, "first")
	createComment(t, db, post.ID, alice.ID, "second")

	w := doGET(t, r, fmt.Sprintf("/posts/%d/", post.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	comments := data["comments"].([]interface{})
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].(map[string]interface{})["text"])
	assert.Equal(t, "second", comments[1].(map[string]interface{})["text"])
}

func TestCreatePostForcesAuthor(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	mallory := createUser(t, db, "mallory")
	cat := createCategory(t, db, "life", true)

	form := url.Values{}
	form.Set("title", "mine")
	form.Set("text", "body")
	form.Set("category_id", fmt.Sprint(cat.ID))
	// Hostile author fields must be ignored.
	form.Set("author_id", fmt.Sprint(mallory.ID))

	w := doForm(t, r, "/posts/create/", bearer(t, alice), form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice/", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, db.First(&post, "title = ?", "mine").Error)
	assert.Equal(t, alice.ID, post.AuthorID)
}

func TestCreatePostRequiresLogin(t *testing.T) {
	r, _ := newTestApp(t)

	form := url.Values{}
	form.Set("title", "anonymous")
	form.Set("text", "body")

	w := doForm(t, r, "/posts/create/", "", form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestEditPostByNonAuthorRedirectsToDetail(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	cat := createCategory(t, db, "life", true)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "original",
		IsPublished: true, PublishAt: hoursAgo(1),
	})

	form := url.Values{}
	form.Set("title", "hijacked")
	form.Set("text", "body")

	path := fmt.Sprintf("/posts/%d/edit/", post.ID)
	w := doForm(t, r, path, bearer(t, bob), form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var reloaded models.Post
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "original", reloaded.Title)
}

func TestEditPostByAuthor(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "original",
		IsPublished: true, PublishAt: hoursAgo(1),
	})

	form := url.Values{}
	form.Set("title", "updated")
	form.Set("text", "new body")
	form.Set("category_id", fmt.Sprint(cat.ID))

	w := doForm(t, r, fmt.Sprintf("/posts/%d/edit/", post.ID), bearer(t, alice), form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice/", w.Header().Get("Location"))

	var reloaded models.Post
	require.NoError(t, db.First(&reloaded, post.ID).Error)
	assert.Equal(t, "updated", reloaded.Title)
}

func TestDeletePostCascadesComments(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	cat := createCategory(t, db, "life", true)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "doomed",
		IsPublished: true, PublishAt: hoursAgo(1),
	})
	createComment(t, db, post.ID, bob.ID, "gone too")

	w := doForm(t, r, fmt.Sprintf("/posts/%d/delete/", post.ID), bearer(t, alice), url.Values{})
	require.Equal(t, http.StatusFound, w.Code)

	var posts int64
	db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&posts)
	assert.EqualValues(t, 0, posts)

	var comments int64
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	assert.EqualValues(t, 0, comments)
}

func TestUnpublishedFlagSurvivesInsert(t *testing.T) {
	_, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "drafts", false)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "draft",
		IsPublished: false, PublishAt: hoursAgo(1),
	})

	// The column default must not overwrite an explicit false on INSERT.
	var storedCat models.Category
	require.NoError(t, db.First(&storedCat, cat.ID).Error)
	assert.False(t, storedCat.IsPublished)

	var storedPost models.Post
	require.NoError(t, db.First(&storedPost, post.ID).Error)
	assert.False(t, storedPost.IsPublished)
}

func TestCreateUnpublishedPostStaysHidden(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)

	form := url.Values{}
	form.Set("title", "draft")
	form.Set("text", "body")
	form.Set("category_id", fmt.Sprint(cat.ID))
	form.Set("is_published", "false")

	w := doForm(t, r, "/posts/create/", bearer(t, alice), form)
	require.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	require.NoError(t, db.First(&post, "title = ?", "draft").Error)
	assert.False(t, post.IsPublished)

	assert.Empty(t, feedItems(t, doGET(t, r, "/", "")))
	assert.Equal(t, http.StatusNotFound,
		doGET(t, r, fmt.Sprintf("/posts/%d/", post.ID), "").Code)
}

func TestScheduledPostAppearsAfterPublishTime(t *testing.T) {
	r, db := newTestApp(t)
	alice := createUser(t, db, "alice")
	cat := createCategory(t, db, "life", true)
	post := createPost(t, db, models.Post{
		AuthorID: alice.ID, CategoryID: &cat.ID, Title: "tomorrow",
		IsPublished: true, PublishAt: time.Now().Add(24 * time.Hour),
	})

	assert.Empty(t, feedItems(t, doGET(t, r, "/", "")))

	// Once the scheduled time has passed the post surfaces on its own.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		Update("publish_at", hoursAgo(1)).Error)
	assert.Equal(t, []string{"tomorrow"}, itemTitles(t, doGET(t, r, "/", "")))
}
