package anilist

// GraphQL documents for the fixed-shape operations. The update mutation
// is not listed here: its text is generated per call so it only declares
// the variables actually being written (see mutation.go).

const mediaFields = `
      id
      title {
        romaji
        english
        native
      }
      format
      status
      chapters
      volumes
      coverImage {
        large
        medium
      }`

// searchMangaQuery finds manga by free-text search, one page at a time.
const searchMangaQuery = `query ($search: String, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo {
      total
      currentPage
      lastPage
      hasNextPage
      perPage
    }
    media(search: $search, type: MANGA) {` + mediaFields + `
    }
  }
}`

// mangaByIDsQuery resolves a batch of known media ids.
const mangaByIDsQuery = `query ($ids: [Int], $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo {
      total
      currentPage
      lastPage
      hasNextPage
      perPage
    }
    media(id_in: $ids, type: MANGA) {` + mediaFields + `
    }
  }
}`

// viewerQuery identifies the user the token belongs to.
const viewerQuery = `query {
  Viewer {
    id
    name
  }
}`

// userMangaListQuery fetches the viewer's manga list one chunk at a time.
// Chunking replaces per-list pagination: AniList caps perChunk at 500.
const userMangaListQuery = `query ($userId: Int, $chunk: Int, $perChunk: Int) {
  MediaListCollection(userId: $userId, type: MANGA, chunk: $chunk, perChunk: $perChunk) {
    hasNextChunk
    lists {
      name
      entries {
        id
        mediaId
        status
        progress
        score
        private
        media {
          id
          title {
            romaji
            english
            native
          }
        }
      }
    }
  }
}`

// deleteMediaListEntryMutation removes one list entry by its entry id.
const deleteMediaListEntryMutation = `mutation ($id: Int) {
  DeleteMediaListEntry(id: $id) {
    deleted
  }
}`
