package sqlinline

const QJobHistoryEnsureTable = `--sql 2b7c4e1a-9d3f-4a61-8c2e-5f0b7d91a3c4
create table if not exists job_history (
    id text primary key,
    prompt text not null,
    original_template text not null default '',
    selections jsonb not null default '[]'::jsonb,
    params jsonb not null default '{}'::jsonb,
    seed bigint not null default 0,
    status text not null,
    failure_reason text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QJobHistoryUpsert = `--sql 8e41f0c2-3b6d-4f7a-9a15-c2d84e6b7f10
insert into job_history (id, prompt, original_template, selections, params, seed, status, failure_reason, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
on conflict (id) do update
set status = excluded.status,
    failure_reason = excluded.failure_reason,
    updated_at = excluded.updated_at;
`

const QJobHistoryGet = `--sql 5d2a9c17-6e84-4b3f-a7d0-1f93c6e5b8a2
select id, prompt, original_template, selections, params, seed, status, failure_reason, created_at, updated_at
from job_history
where id = $1;
`

const QJobHistoryRecent = `--sql c7f3e8b4-1a29-4d56-b0e7-93a6d4f215ce
select id, prompt, original_template, selections, params, seed, status, failure_reason, created_at, updated_at
from job_history
order by created_at desc
limit $1;
`
