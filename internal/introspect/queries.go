package introspect

// Catalog queries. Every query takes the schema name as $1 and returns
// rows for all tables of that schema; table filtering happens in Go.

const schemaQuery = `
SELECT COALESCE(obj_description(n.oid, 'pg_namespace'), '')
FROM pg_namespace n
WHERE n.nspname = $1`

const tablesQuery = `
SELECT c.relname
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p')
  AND NOT c.relispartition
ORDER BY c.relname`

const columnsQuery = `
SELECT
    c.relname,
    a.attname,
    a.attnum,
    format_type(a.atttypid, a.atttypmod),
    NOT a.attnotnull,
    COALESCE(pg_get_expr(d.adbin, d.adrelid), ''),
    a.attidentity::text,
    COALESCE(col_description(c.oid, a.attnum), ''),
    EXISTS (
        SELECT 1
        FROM pg_depend dep
        JOIN pg_class s ON s.oid = dep.objid AND s.relkind = 'S'
        WHERE dep.refobjid = c.oid
          AND dep.refobjsubid = a.attnum
          AND dep.deptype = 'a'
    )
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p')
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY c.relname, a.attnum`

const constraintsQuery = `
SELECT
    c.relname,
    con.conname,
    con.contype::text,
    pg_get_constraintdef(con.oid),
    ARRAY(
        SELECT a.attname
        FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
        JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
        ORDER BY k.ord
    )::text[],
    COALESCE(fn.nspname, ''),
    COALESCE(fc.relname, ''),
    ARRAY(
        SELECT a.attname
        FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
        JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
        ORDER BY k.ord
    )::text[],
    con.confdeltype::text,
    con.confupdtype::text
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_class fc ON fc.oid = con.confrelid
LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
WHERE n.nspname = $1
  AND con.contype IN ('p', 'u', 'f', 'c')
ORDER BY c.relname, con.conname`

// Indexes backing constraints belong to the constraint. Invalid indexes
// are leftovers of failed concurrent builds.
const indexesQuery = `
SELECT
    c.relname,
    i.relname,
    pg_get_indexdef(i.oid),
    ix.indisunique
FROM pg_index ix
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_class c ON c.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND ix.indisvalid
  AND NOT EXISTS (
      SELECT 1 FROM pg_constraint con
      WHERE con.conindid = ix.indexrelid
        AND con.conrelid = ix.indrelid
        AND con.contype IN ('p', 'u', 'x')
  )
ORDER BY c.relname, i.relname`

const triggersQuery = `
SELECT
    c.relname,
    t.tgname,
    pg_get_triggerdef(t.oid),
    COALESCE(obj_description(t.oid, 'pg_trigger'), '')
FROM pg_trigger t
JOIN pg_class c ON c.oid = t.tgrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND NOT t.tgisinternal
ORDER BY c.relname, t.tgname`

const enumsQuery = `
SELECT
    t.typname,
    COALESCE(obj_description(t.oid, 'pg_type'), ''),
    ARRAY(
        SELECT e.enumlabel
        FROM pg_enum e
        WHERE e.enumtypid = t.oid
        ORDER BY e.enumsortorder
    )::text[]
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE n.nspname = $1
  AND t.typtype = 'e'
ORDER BY t.typname`
