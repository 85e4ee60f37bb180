package dbstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nucleus/giftreco/internal/etl"
	"github.com/nucleus/giftreco/internal/ferrors"
	"github.com/nucleus/giftreco/internal/jobctx"
)

// Appliers implements the four C9 entity appliers against apl.* tables.
type Appliers struct {
	store *Store
}

// NewAppliers wraps store.
func NewAppliers(store *Store) *Appliers { return &Appliers{store: store} }

// extractItems returns the unwrapped item maps from a ranking payload,
// accepting both `items`/`Items` and a bare map or `{Item: {...}}` wrapper
// per entry (§9 "duck-typed payloads -> explicit accessors").
func extractItems(payload map[string]any) []map[string]any {
	raw := payload["items"]
	if raw == nil {
		raw = payload["Items"]
	}
	list := asList(raw)
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		m := asMap(entry)
		if m == nil {
			continue
		}
		if inner := asMap(m["Item"]); inner != nil {
			m = inner
		}
		out = append(out, m)
	}
	return out
}

// ApplyRanking is the rank-snapshot applier. Conflicts on the natural key
// are ignored (append-only, first write wins).
func (a *Appliers) ApplyRanking(ctx context.Context, jctx *jobctx.Context, payload any, t etl.Target) error {
	root := asMap(payload)
	if root == nil {
		return ferrors.Logic(errNotAMap)
	}
	title := asString(root["title"])
	lastBuildDate := asString(root["lastBuildDate"])

	for _, item := range extractItems(root) {
		itemTitle := asString(item["title"])
		if itemTitle == "" {
			itemTitle = title
		}
		itemLastBuild := asString(item["lastBuildDate"])
		if itemLastBuild == "" {
			itemLastBuild = lastBuildDate
		}
		collectedAt := parseUpstreamTime(itemLastBuild, jctx.JobStartAt)
		rank, _ := asInt(item["rank"])
		itemCode := asString(item["itemCode"])
		if itemCode == "" {
			continue
		}
		if _, err := a.store.pool.Exec(ctx, `
INSERT INTO apl.rank_snapshots (rakuten_genre_id, rakuten_item_code, collected_at, title, last_build_date, rank)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (rakuten_genre_id, rakuten_item_code, collected_at) DO NOTHING`,
			t.GenreID, itemCode, collectedAt, itemTitle, collectedAt, rank); err != nil {
			return err
		}
	}
	return nil
}

// ApplyItem upserts the shop, the item, its images (replaced as a set),
// append-only market/review snapshots, and the item-tag relation (reset per
// apply).
func (a *Appliers) ApplyItem(ctx context.Context, jctx *jobctx.Context, payload any, t etl.Target) error {
	item := asMap(payload)
	if item == nil {
		return ferrors.Logic(errNotAMap)
	}

	var shopID *int64
	if shopCode := asString(item["shopCode"]); shopCode != "" {
		var id int64
		err := a.store.pool.QueryRow(ctx, `
INSERT INTO apl.shops (rakuten_shop_code, shop_name, shop_url, updated_at)
VALUES ($1,$2,$3,now())
ON CONFLICT (rakuten_shop_code) DO UPDATE SET
  shop_name = EXCLUDED.shop_name, shop_url = EXCLUDED.shop_url, updated_at = now()
WHERE apl.shops.shop_name IS DISTINCT FROM EXCLUDED.shop_name
   OR apl.shops.shop_url IS DISTINCT FROM EXCLUDED.shop_url
RETURNING id`,
			shopCode, asString(item["shopName"]), asString(item["shopUrl"])).Scan(&id)
		if err != nil {
			// WHERE-gated upsert: no row changed, fetch the existing id.
			if qerr := a.store.pool.QueryRow(ctx, `SELECT id FROM apl.shops WHERE rakuten_shop_code = $1`, shopCode).Scan(&id); qerr != nil {
				return qerr
			}
		}
		shopID = &id
	}

	var genreID *int64
	if gid, ok := asInt(item["genreId"]); ok {
		if id, err := a.lookupGenreID(ctx, gid); err == nil && id != 0 {
			genreID = &id
		}
	}

	var itemID int64
	if err := a.store.pool.QueryRow(ctx, `
INSERT INTO apl.items (rakuten_item_code, shop_id, genre_id, item_name, catchcopy, caption, item_url, affiliate_url, is_active, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true,now())
ON CONFLICT (rakuten_item_code) DO UPDATE SET
  shop_id = EXCLUDED.shop_id, genre_id = EXCLUDED.genre_id, item_name = EXCLUDED.item_name,
  catchcopy = EXCLUDED.catchcopy, caption = EXCLUDED.caption, item_url = EXCLUDED.item_url,
  affiliate_url = EXCLUDED.affiliate_url, is_active = true, updated_at = now()
RETURNING id`,
		t.ItemCode, shopID, genreID, asString(item["itemName"]), asString(item["catchcopy"]),
		asString(item["itemCaption"]), asString(item["itemUrl"]), asString(item["affiliateUrl"])).Scan(&itemID); err != nil {
		return err
	}

	if err := a.syncItemImages(ctx, itemID, asList(item["smallImageUrls"]), asList(item["mediumImageUrls"])); err != nil {
		return err
	}

	collectedAt := jctx.JobStartAt
	price, _ := asInt(item["itemPrice"])
	pointRate, _ := asFloat(item["pointRate"])
	if _, err := a.store.pool.Exec(ctx, `
INSERT INTO apl.market_snapshots (item_id, collected_at, price_yen, point_rate, availability)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (item_id, collected_at) DO NOTHING`,
		itemID, collectedAt, price, pointRate, asString(item["availability"])); err != nil {
		return err
	}

	reviewAvg, _ := asFloat(item["reviewAverage"])
	reviewCount, _ := asInt(item["reviewCount"])
	if _, err := a.store.pool.Exec(ctx, `
INSERT INTO apl.review_snapshots (item_id, collected_at, review_average, review_count)
VALUES ($1,$2,$3,$4)
ON CONFLICT (item_id, collected_at) DO NOTHING`,
		itemID, collectedAt, reviewAvg, reviewCount); err != nil {
		return err
	}

	return a.resetItemTags(ctx, itemID, asIDList(item["tagIds"]))
}

// syncItemImages deletes every existing row for itemID and reinserts small
// images then medium images, sort_order 1..n per size, in input order.
func (a *Appliers) syncItemImages(ctx context.Context, itemID int64, small, medium []any) error {
	tx, err := a.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM apl.item_images WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	insert := func(size string, urls []any) error {
		for i, u := range urls {
			if _, err := tx.Exec(ctx, `
INSERT INTO apl.item_images (item_id, size, url, sort_order) VALUES ($1,$2,$3,$4)`,
				itemID, size, asString(u), i+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert("small", small); err != nil {
		return err
	}
	if err := insert("medium", medium); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (a *Appliers) resetItemTags(ctx context.Context, itemID int64, tagIDs []int64) error {
	tx, err := a.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM apl.item_tags WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	for _, rakutenTagID := range tagIDs {
		var tagID int64
		err := tx.QueryRow(ctx, `SELECT id FROM apl.tags WHERE rakuten_tag_id = $1`, rakutenTagID).Scan(&tagID)
		if err != nil {
			// A tag not yet synced by the tag applier: skip, don't fail the item apply.
			continue
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO apl.item_tags (item_id, tag_id) VALUES ($1,$2)
ON CONFLICT DO NOTHING`, itemID, tagID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (a *Appliers) lookupGenreID(ctx context.Context, rakutenGenreID int64) (int64, error) {
	var id int64
	err := a.store.pool.QueryRow(ctx, `SELECT id FROM apl.genres WHERE rakuten_genre_id = $1`, rakutenGenreID).Scan(&id)
	return id, err
}

// ApplyGenre resolves the parent chain in deepest-last order before
// upserting the current genre. If any parent is missing its genreId, or its
// upsert yields no internal id, the whole call is a no-op (§4.9, scenario
// 4): no row written, no commit.
func (a *Appliers) ApplyGenre(ctx context.Context, jctx *jobctx.Context, payload any, t etl.Target) error {
	root := asMap(payload)
	if root == nil {
		return ferrors.Logic(errNotAMap)
	}
	current := asMap(root["current"])
	if current == nil {
		return ferrors.Logic(errMissingCurrent)
	}

	tx, err := a.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var parentID *int64
	for _, p := range asList(root["parents"]) {
		parent := asMap(p)
		gid, ok := asInt(field(parent, "genreId"))
		if !ok {
			return ferrors.Logic(errMissingGenreID)
		}
		var id int64
		err := tx.QueryRow(ctx, `
INSERT INTO apl.genres (rakuten_genre_id, genre_name, genre_level, parent_id, updated_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (rakuten_genre_id) DO UPDATE SET
  genre_name = EXCLUDED.genre_name, genre_level = EXCLUDED.genre_level, parent_id = EXCLUDED.parent_id, updated_at = now()
RETURNING id`,
			gid, asString(parent["genreName"]), intOrNil(parent["genreLevel"]), parentID).Scan(&id)
		if err != nil || id == 0 {
			return ferrors.Logic(errUnresolvableParent)
		}
		parentID = &id
	}

	gid, ok := asInt(current["genreId"])
	if !ok {
		return ferrors.Logic(errMissingGenreID)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO apl.genres (rakuten_genre_id, genre_name, genre_level, parent_id, updated_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (rakuten_genre_id) DO UPDATE SET
  genre_name = EXCLUDED.genre_name, genre_level = EXCLUDED.genre_level, parent_id = EXCLUDED.parent_id, updated_at = now()`,
		gid, asString(current["genreName"]), intOrNil(current["genreLevel"]), parentID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func intOrNil(v any) any {
	if i, ok := asInt(v); ok {
		return i
	}
	return nil
}

// tagNode is one entry of a tag group's forest, as seen by the DFS upserter.
type tagNode struct {
	id       int64
	name     string
	parentID int64
}

// extractTagGroup returns the tag group map from either the
// `tagGroups[*].tagGroup` array form or a single bare `tagGroup` form.
func extractTagGroup(root map[string]any) map[string]any {
	if groups := asList(root["tagGroups"]); len(groups) > 0 {
		if g := asMap(groups[0]); g != nil {
			if tg := asMap(g["tagGroup"]); tg != nil {
				return tg
			}
		}
	}
	return asMap(root["tagGroup"])
}

// ApplyTag upserts the tag group then topologically upserts its tags,
// respecting parentTagId, via an explicit DFS with visited/visiting sets
// (§4.9, §9 "cyclic tag graph -> explicit DFS state").
func (a *Appliers) ApplyTag(ctx context.Context, jctx *jobctx.Context, payload any, t etl.Target) error {
	root := asMap(payload)
	if root == nil {
		return ferrors.Logic(errNotAMap)
	}
	group := extractTagGroup(root)
	if group == nil {
		return ferrors.Logic(errMissingTagGroup)
	}
	tagGroupID, ok := asInt(group["tagGroupId"])
	if !ok {
		return ferrors.Logic(errMissingTagGroupID)
	}

	tx, err := a.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var groupPK int64
	if err := tx.QueryRow(ctx, `
INSERT INTO apl.tag_groups (rakuten_tag_group_id, tag_group_name, updated_at)
VALUES ($1,$2,now())
ON CONFLICT (rakuten_tag_group_id) DO UPDATE SET tag_group_name = EXCLUDED.tag_group_name, updated_at = now()
RETURNING id`, tagGroupID, asString(group["tagGroupName"])).Scan(&groupPK); err != nil {
		return err
	}

	nodes := map[int64]tagNode{}
	for _, raw := range asList(group["tags"]) {
		m := asMap(raw)
		id, ok := asInt(field(m, "tagId"))
		if !ok {
			continue
		}
		parentID, _ := asInt(field(m, "parentTagId"))
		nodes[id] = tagNode{id: id, name: asString(field(m, "tagName")), parentID: parentID}
	}

	visited := map[int64]bool{}
	visiting := map[int64]bool{}
	skipped := map[int64]bool{}
	inserted := 0

	var resolve func(id int64, stack []int64) error
	resolve = func(id int64, stack []int64) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			// Back-edge: this node and every ancestor currently on the
			// stack are unresolvable.
			skipped[id] = true
			for _, anc := range stack {
				skipped[anc] = true
			}
			return nil
		}
		node, ok := nodes[id]
		if !ok {
			skipped[id] = true
			return nil
		}
		visiting[id] = true
		defer delete(visiting, id)

		if node.parentID != 0 {
			if err := resolve(node.parentID, append(stack, id)); err != nil {
				return err
			}
			if skipped[node.parentID] {
				skipped[id] = true
				visited[id] = true
				return nil
			}
			if _, ok, err := a.tagPK(ctx, tx, node.parentID); err != nil {
				return err
			} else if !ok {
				skipped[id] = true
				visited[id] = true
				return nil
			}
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO apl.tags (rakuten_tag_id, tag_group_id, tag_name, parent_tag_id, updated_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (rakuten_tag_id) DO UPDATE SET
  tag_group_id = EXCLUDED.tag_group_id, tag_name = EXCLUDED.tag_name, parent_tag_id = EXCLUDED.parent_tag_id, updated_at = now()`,
			node.id, groupPK, node.name, node.parentID); err != nil {
			return err
		}
		inserted++
		visited[id] = true
		return nil
	}

	for id := range nodes {
		if err := resolve(id, nil); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (a *Appliers) tagPK(ctx context.Context, tx pgx.Tx, rakutenTagID int64) (int64, bool, error) {
	var pk int64
	err := tx.QueryRow(ctx, `SELECT id FROM apl.tags WHERE rakuten_tag_id = $1`, rakutenTagID).Scan(&pk)
	if err != nil {
		return 0, false, nil
	}
	return pk, true, nil
}

// parseUpstreamTime parses an RFC3339-ish upstream timestamp, falling back
// to fallback when raw is empty or unparseable.
func parseUpstreamTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
